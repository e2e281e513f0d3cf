package layout

import (
	"fmt"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

// Compatibility selects the rule used to decide whether a template's
// annotations may be transferred to a layout.
type Compatibility int

const (
	// ByCount requires equal block counts only.
	ByCount Compatibility = iota
	// ByShape requires equal block counts and equal per-block heights.
	ByShape
)

func (c Compatibility) String() string {
	switch c {
	case ByCount:
		return "count"
	case ByShape:
		return "shape"
	default:
		return fmt.Sprintf("Compatibility(%d)", int(c))
	}
}

// IsCompatible reports whether a and b have the same number of blocks.
func IsCompatible(a, b Layout) bool {
	return IsCompatibleWith(a, b, ByCount)
}

// IsCompatibleWith applies the given compatibility rule.
func IsCompatibleWith(a, b Layout, mode Compatibility) bool {
	if len(a.Blocks) != len(b.Blocks) {
		return false
	}
	if mode == ByShape {
		for i := range a.Blocks {
			if a.Blocks[i].Height() != b.Blocks[i].Height() {
				return false
			}
		}
	}
	return true
}

// Merge copies every annotation present in source onto the block with the
// same index in target, overwriting what was there. Blocks whose source
// counterpart has no annotation are left alone. target is modified in place
// and returned.
func Merge(target *Layout, source Layout) (*Layout, error) {
	return MergeWith(target, source, ByCount)
}

// MergeWith is Merge with an explicit compatibility rule.
func MergeWith(target *Layout, source Layout, mode Compatibility) (*Layout, error) {
	if target == nil {
		return nil, errors.InvalidInput("merge target is nil")
	}
	if !IsCompatibleWith(*target, source, mode) {
		return nil, errors.New(errors.ErrCodeLayoutMismatch,
			"layouts are not compatible: %d blocks vs %d blocks (%s)",
			len(target.Blocks), len(source.Blocks), mode)
	}
	for i, sb := range source.Blocks {
		if sb.HasAnnotation() {
			target.Blocks[i].SetAnnotation(*sb.Annotation)
		}
	}
	return target, nil
}

// Annotate sets the label of block index.
func Annotate(l *Layout, index int, label string) error {
	if l == nil {
		return errors.InvalidInput("layout is nil")
	}
	if index < 0 || index >= len(l.Blocks) {
		return errors.InvalidInput("block index %d out of range (layout has %d blocks)", index, len(l.Blocks))
	}
	l.Blocks[index].SetAnnotation(label)
	return nil
}
