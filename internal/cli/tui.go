package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listLabelStyle    = lipgloss.NewStyle().Foreground(colorGreen)
)

// =============================================================================
// annotateModel - Interactive block labelling
// =============================================================================

// annotateModel lets the user move through the blocks of a layout and edit
// their labels. Nothing is written until the user saves.
type annotateModel struct {
	filename string
	blocks   []layout.Block
	labels   []string // edited labels, "" when unset
	set      []bool   // whether labels[i] is present
	original []string

	cursor  int
	editing bool
	input   []rune
	saved   bool
}

type labelChange struct {
	index int
	label string
}

func newAnnotateModel(filename string, l layout.Layout) annotateModel {
	m := annotateModel{
		filename: filename,
		blocks:   l.Blocks,
		labels:   make([]string, len(l.Blocks)),
		set:      make([]bool, len(l.Blocks)),
		original: make([]string, len(l.Blocks)),
	}
	for i, b := range l.Blocks {
		if b.HasAnnotation() {
			m.labels[i] = b.AnnotationText()
			m.set[i] = true
			m.original[i] = m.labels[i]
		}
	}
	return m
}

func (m annotateModel) Init() tea.Cmd {
	return nil
}

func (m annotateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.editing {
		return m.updateEditing(key)
	}

	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.blocks)-1 {
			m.cursor++
		}
	case "enter", "e":
		m.editing = true
		m.input = []rune(m.labels[m.cursor])
	case "s":
		m.saved = true
		return m, tea.Quit
	}
	return m, nil
}

func (m annotateModel) updateEditing(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.editing = false
		m.input = nil
	case tea.KeyEnter:
		m.labels[m.cursor] = strings.TrimSpace(string(m.input))
		m.set[m.cursor] = true
		m.editing = false
		m.input = nil
		if m.cursor < len(m.blocks)-1 {
			m.cursor++
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, key.Runes...)
	}
	return m, nil
}

// changes lists labels that differ from what was loaded, in block order.
func (m annotateModel) changes() []labelChange {
	var out []labelChange
	for i := range m.blocks {
		if !m.set[i] {
			continue
		}
		if b := m.blocks[i]; b.HasAnnotation() && m.original[i] == m.labels[i] {
			continue
		}
		out = append(out, labelChange{index: i, label: m.labels[i]})
	}
	return out
}

func (m annotateModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Label blocks · " + m.filename))
	b.WriteString("\n")
	if m.editing {
		b.WriteString(listDimStyle.Render("type a label  ⏎ confirm  esc cancel"))
	} else {
		b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ edit  s save  q quit"))
	}
	b.WriteString("\n\n")

	for i, blk := range m.blocks {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%-3d rows %d–%d  %s", cursor, blk.Label, blk.Top, blk.Bottom, listDimStyle.Render(preview(blk)))

		label := listDimStyle.Render("—")
		switch {
		case i == m.cursor && m.editing:
			label = listSelectedStyle.Render(string(m.input) + "▏")
		case m.set[i]:
			label = listLabelStyle.Render(m.labels[i])
		}

		if i == m.cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("  " + label + "\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  %d changed", m.cursor+1, len(m.blocks), len(m.changes()))))
	return b.String()
}
