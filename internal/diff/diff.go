// Package diff renders unified diffs of class disassembly. It uses
// github.com/pmezard/go-difflib/difflib to produce classic unified patches
// (---/+++ headers, @@ hunks, lines prefixed with ' ', '-', '+').
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	difflib "github.com/pmezard/go-difflib/difflib"

	"class-patcher/internal/classfile"
)

// Options controls patch generation behavior.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded,
	// a minimal placeholder patch is returned and oversize=true.
	// 0 means "no limit".
	MaxBytes int

	// Context controls the number of CONTEXT LINES in unified hunks.
	// If 0, default to 4.
	Context int
}

// Unified produces a classic unified patch for a↦b.
// Returns the patch body and a flag indicating it was omitted due to size.
// Identical inputs yield an empty body.
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && (len(a)+len(b)) > opt.MaxBytes {
		return omitted(aName, bName), true
	}
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 4
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(a)),
		B:        splitLinesKeepNL(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted(aName, bName), false
	}
	return s, false
}

// Classes disassembles two versions of a class and diffs the listings.
func Classes(name string, before, after []byte, opt Options) (string, error) {
	a, err := listing(before)
	if err != nil {
		return "", fmt.Errorf("%s (before): %w", name, err)
	}
	b, err := listing(after)
	if err != nil {
		return "", fmt.Errorf("%s (after): %w", name, err)
	}
	body, _ := Unified("a/"+name, "b/"+name, []byte(a), []byte(b), opt)
	return body, nil
}

func listing(b []byte) (string, error) {
	c, err := classfile.Parse(b)
	if err != nil {
		return "", err
	}
	return classfile.Disassemble(c)
}

// splitLinesKeepNL splits into lines and keeps newline characters,
// which produces better unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

// omitted returns a compact placeholder when size limits are exceeded.
func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}

// Colorize paints a unified patch for a terminal: headers bold, hunk markers
// cyan, removed lines red, added lines green.
func Colorize(body string) string {
	header := color.New(color.Bold)
	hunk := color.New(color.FgCyan)
	del := color.New(color.FgRed)
	add := color.New(color.FgGreen)
	for _, c := range []*color.Color{header, hunk, del, add} {
		c.EnableColor()
	}

	var b strings.Builder
	for _, line := range splitLinesKeepNL(body) {
		text := strings.TrimSuffix(line, "\n")
		var c *color.Color
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			c = header
		case strings.HasPrefix(text, "@@"):
			c = hunk
		case strings.HasPrefix(text, "+"):
			c = add
		case strings.HasPrefix(text, "-"):
			c = del
		}
		if c == nil {
			b.WriteString(line)
			continue
		}
		b.WriteString(c.Sprint(text))
		b.WriteString(line[len(text):])
	}
	return b.String()
}
