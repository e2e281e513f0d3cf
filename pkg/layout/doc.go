// Package layout segments a grid into labelled blocks and moves annotations
// between compatible layouts.
//
// # Detection
//
// [Detect] scans a [grid.Grid] top to bottom. A row whose cells are all empty
// is a separator; each maximal run of non-separator rows becomes one [Block]
// spanning the full grid width. Blocks are labelled 0, 1, 2... in detection
// order:
//
//	row 0  A   1      ┐ block 0 (rows 0-1)
//	row 1  A   2      ┘
//	row 2  nan nan      separator
//	row 3  B   1      ┐ block 1 (rows 3-4)
//	row 4  B   2      ┘
//
// Leading, trailing and repeated separator rows never produce blocks, so
// an all-empty grid has no blocks at all.
//
// # Matching
//
// Two layouts are compatible when they have the same number of blocks
// ([ByCount], the default). [ByShape] additionally requires equal block
// heights. [Merge] copies every annotation of a source layout onto the block
// with the same index in the target; it never looks at cell contents.
package layout
