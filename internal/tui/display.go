package tui

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/cadastro/internal/client"
)

// EmptyMessage is shown when there are no records to list.
const EmptyMessage = "No clients registered."

// menuWidth is the outer width of the plain-text menu box.
const menuWidth = 40

// MenuItem is one numbered entry of the main menu.
type MenuItem struct {
	Key   string
	Label string
}

// Renderer writes the menu and client listings.
type Renderer interface {
	// Menu writes the numbered menu.
	Menu(w io.Writer, title string, items []MenuItem)
	// Records writes every client yielded by seq and returns how many were written.
	// When seq yields nothing, EmptyMessage is written instead.
	Records(w io.Writer, seq iter.Seq2[client.TaxID, client.Client]) int
}

// Verify at compile time that both renderers implement Renderer.
var (
	_ Renderer = PlainRenderer{}
	_ Renderer = StyledRenderer{}
)

// NewRenderer returns a styled renderer when w is a TTY, or a plain text
// renderer otherwise. forcePlain overrides TTY detection.
func NewRenderer(w io.Writer, forcePlain bool) Renderer {
	if forcePlain || !IsTTY(w) {
		return PlainRenderer{}
	}
	return NewStyledRenderer()
}

// IsTTY reports whether w is connected to a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PlainRenderer writes unstyled text suitable for pipes and logs.
type PlainRenderer struct{}

// Menu writes the menu inside an ASCII box.
func (PlainRenderer) Menu(w io.Writer, title string, items []MenuItem) {
	rule := strings.Repeat("-", menuWidth)
	inner := menuWidth - 4
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, "| %-*s |\n", inner, title)
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "| %-*s |\n", inner, it.Key+". "+it.Label)
	}
	_, _ = fmt.Fprintln(w, rule)
}

// Records writes one block per client followed by a dashed separator.
func (PlainRenderer) Records(w io.Writer, seq iter.Seq2[client.TaxID, client.Client]) int {
	n := 0
	for id, c := range seq {
		for _, f := range fields(id, c) {
			_, _ = fmt.Fprintf(w, "%s: %s\n", f.label, f.value)
		}
		_, _ = fmt.Fprintln(w, strings.Repeat("-", 20))
		n++
	}
	if n == 0 {
		_, _ = fmt.Fprintln(w, EmptyMessage)
	}
	return n
}

// StyledRenderer writes lipgloss-styled output for terminals.
type StyledRenderer struct {
	box   lipgloss.Style
	title lipgloss.Style
	key   lipgloss.Style
	label lipgloss.Style
	dim   lipgloss.Style
}

// NewStyledRenderer creates a StyledRenderer with the default palette.
func NewStyledRenderer() StyledRenderer {
	return StyledRenderer{
		box:   FocusedBorder().Padding(0, 1),
		title: lipgloss.NewStyle().Bold(true),
		key:   lipgloss.NewStyle().Foreground(accentColor).Bold(true),
		label: lipgloss.NewStyle().Foreground(dimColor).Width(labelWidth),
		dim:   lipgloss.NewStyle().Foreground(dimColor),
	}
}

// Menu writes the menu inside a rounded border.
func (r StyledRenderer) Menu(w io.Writer, title string, items []MenuItem) {
	lines := []string{r.title.Render(title)}
	for _, it := range items {
		lines = append(lines, r.key.Render(it.Key+".")+" "+it.Label)
	}
	_, _ = fmt.Fprintln(w, r.box.Render(strings.Join(lines, "\n")))
}

// Records writes each client as an aligned label/value block.
func (r StyledRenderer) Records(w io.Writer, seq iter.Seq2[client.TaxID, client.Client]) int {
	n := 0
	for id, c := range seq {
		var b strings.Builder
		for i, f := range fields(id, c) {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(r.label.Render(f.label) + f.value)
		}
		_, _ = fmt.Fprintln(w, UnfocusedBorder().Padding(0, 1).Render(b.String()))
		n++
	}
	if n == 0 {
		_, _ = fmt.Fprintln(w, r.dim.Render(EmptyMessage))
	}
	return n
}

type field struct {
	label string
	value string
}

// fields returns the labelled values shown for one client.
func fields(id client.TaxID, c client.Client) []field {
	return []field{
		{label: "CPF", value: id.String()},
		{label: "Name", value: c.Name},
		{label: "Age", value: fmt.Sprint(c.Age)},
		{label: "E-mail", value: c.Email},
	}
}
