package layout

// Block is one rectangular run of non-empty rows.
// Row bounds are inclusive; Left is always 0 and Right is always Width-1.
type Block struct {
	Label      int        `json:"label"`
	Top        int        `json:"top"`
	Bottom     int        `json:"bottom"`
	Left       int        `json:"left"`
	Right      int        `json:"right"`
	Text       [][]string `json:"text"`
	Annotation *string    `json:"annotation,omitempty"`
}

// Height returns the number of rows covered by the block.
func (b Block) Height() int { return b.Bottom - b.Top + 1 }

// Contains reports whether row lies inside the block.
func (b Block) Contains(row int) bool { return row >= b.Top && row <= b.Bottom }

// HasAnnotation reports whether a label has been attached. An empty label
// still counts as present.
func (b Block) HasAnnotation() bool { return b.Annotation != nil }

// AnnotationText returns the label, or "" when there is none.
func (b Block) AnnotationText() string {
	if b.Annotation == nil {
		return ""
	}
	return *b.Annotation
}

// SetAnnotation attaches label to the block, replacing any previous one.
func (b *Block) SetAnnotation(label string) {
	b.Annotation = &label
}

// ClearAnnotation removes the label.
func (b *Block) ClearAnnotation() { b.Annotation = nil }

// Layout is the ordered block list of one file.
type Layout struct {
	Blocks []Block `json:"blocks"`
}

// Len returns the number of blocks.
func (l Layout) Len() int { return len(l.Blocks) }

// Annotated returns how many blocks carry a label.
func (l Layout) Annotated() int {
	n := 0
	for _, b := range l.Blocks {
		if b.HasAnnotation() {
			n++
		}
	}
	return n
}

// BlockAt returns the block covering row, if any.
func (l Layout) BlockAt(row int) (Block, bool) {
	for _, b := range l.Blocks {
		if b.Contains(row) {
			return b, true
		}
		if b.Top > row {
			break
		}
	}
	return Block{}, false
}

// Clone returns a deep copy. Annotations are copied, not shared.
func (l Layout) Clone() Layout {
	if l.Blocks == nil {
		return Layout{}
	}
	out := Layout{Blocks: make([]Block, len(l.Blocks))}
	for i, b := range l.Blocks {
		nb := b
		if b.Text != nil {
			nb.Text = make([][]string, len(b.Text))
			for j, row := range b.Text {
				nb.Text[j] = append([]string(nil), row...)
			}
		}
		if b.Annotation != nil {
			nb.SetAnnotation(*b.Annotation)
		}
		out.Blocks[i] = nb
	}
	return out
}
