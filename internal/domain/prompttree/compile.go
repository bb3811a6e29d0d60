package prompttree

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultSeparator joins fragments of an ordered sequence.
	DefaultSeparator = ", "
	// RandomSeparator joins the alternatives of a random group.
	RandomSeparator = "|"
)

var (
	parenEscaper  = strings.NewReplacer("(", `\(`, ")", `\)`)
	trailingComma = regexp.MustCompile(`,[\s\p{Zs}]*$`)
	doubledComma  = regexp.MustCompile(`,\s*,`)
)

// Compile flattens the enabled nodes of seq into a prompt string joined by
// sep. Disabled nodes are skipped together with their whole subtree.
//
// Groups compile their children recursively: random groups join them with
// RandomSeparator and wrap the result in braces, ordered groups join them
// with DefaultSeparator. Leaves are escaped and, when weighted, wrapped as
// "(text:weight)". Empty emissions are dropped. For DefaultSeparator joins,
// comma runs such as ", ," left by fragments ending in a comma collapse to a
// single separator.
func Compile(seq []*Node, sep string) string {
	parts := make([]string, 0, len(seq))
	for _, n := range seq {
		if n == nil || !n.Enabled {
			continue
		}
		if s := compileNode(n); s != "" {
			parts = append(parts, s)
		}
	}

	out := strings.Join(parts, sep)
	if sep == DefaultSeparator {
		out = doubledComma.ReplaceAllString(out, DefaultSeparator)
	}
	return out
}

func compileNode(n *Node) string {
	if n.IsGroup {
		if !n.IsRandom {
			return Compile(n.Children, DefaultSeparator)
		}
		inner := Compile(n.Children, RandomSeparator)
		if inner == "" {
			return ""
		}
		return "{" + inner + "}"
	}
	return compileLeaf(n.Content, n.Weight)
}

// compileLeaf escapes content, strips one trailing comma run and only then
// applies the weight wrapper, so "tag," weighted 1.3 yields "(tag:1.3)".
func compileLeaf(content string, weight float64) string {
	text := parenEscaper.Replace(content)
	text = strings.TrimSpace(trailingComma.ReplaceAllString(text, ""))
	if text == "" {
		return ""
	}
	if weight != NeutralWeight {
		return "(" + text + ":" + FormatWeight(weight) + ")"
	}
	return text
}

// FormatWeight renders a weight in its shortest exact decimal form: 1.2
// prints as "1.2" and 2 as "2".
func FormatWeight(w float64) string {
	// Negative zero prints as 0.
	if w == 0 {
		w = 0
	}
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// ParseRaw splits a flat comma separated prompt, as found in a generation
// UI's text box, into enabled leaves with fresh ids.
func ParseRaw(raw string, ids *IDGenerator) []*Node {
	var out []*Node
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n := New(ids.Next(), false)
		n.Content = part
		out = append(out, n)
	}
	return out
}
