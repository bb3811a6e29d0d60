package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
)

// renderer prints prompt trees as an indented outline. On a terminal lines
// are cut to the terminal width.
type renderer struct {
	w     io.Writer
	width int // 0 means no limit
	err   error
}

func newRenderer(w io.Writer) *renderer {
	r := &renderer{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			r.width = width
		}
	}
	return r
}

func (r *renderer) heading(s string) {
	r.line("[" + s + "]")
}

func (r *renderer) tree(seq []*prompttree.Node) {
	if len(seq) == 0 {
		r.line("  (empty)")
		return
	}
	r.nodes(seq, 1)
}

func (r *renderer) nodes(seq []*prompttree.Node, depth int) {
	for _, n := range seq {
		r.line(strings.Repeat("  ", depth) + describe(n))
		if n.IsGroup {
			r.nodes(n.Children, depth+1)
		}
	}
}

func (r *renderer) line(s string) {
	if r.err != nil {
		return
	}
	if r.width > 0 {
		if runes := []rune(s); len(runes) > r.width {
			s = string(runes[:r.width-1]) + "…"
		}
	}
	_, r.err = fmt.Fprintln(r.w, s)
}

// describe renders one node: a checkbox for the enabled flag, the id, the
// group name or leaf content, and non-neutral weights.
func describe(n *prompttree.Node) string {
	var b strings.Builder
	if n.Enabled {
		b.WriteString("[x] ")
	} else {
		b.WriteString("[ ] ")
	}
	fmt.Fprintf(&b, "#%d ", n.ID)
	if n.IsGroup {
		b.WriteString(n.Name + "/")
		if n.IsRandom {
			b.WriteString(" (random)")
		}
	} else {
		b.WriteString(n.Content)
	}
	if n.Weight != prompttree.NeutralWeight {
		b.WriteString(" :" + prompttree.FormatWeight(n.Weight))
	}
	if n.Memo != "" {
		b.WriteString("  # " + n.Memo)
	}
	return b.String()
}
