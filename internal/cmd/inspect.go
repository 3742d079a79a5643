package cmd

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"class-patcher/internal/diff"
	"class-patcher/internal/rewrite"
)

var (
	inspectMarker  string
	inspectContext int
	inspectColor   string
)

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "inspect <file.class | file.jar!entry>",
		Short: "Show what rewriting does to one class",
		Long: `Disassemble a class before and after rewriting and print the unified diff.
Nothing is written back.`,
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}
	c.Flags().StringVar(&inspectMarker, "marker", "", "Internal name of the marker class")
	c.Flags().IntVarP(&inspectContext, "context", "U", 3, "Lines of diff context")
	c.Flags().StringVar(&inspectColor, "color", "auto", "Color the diff: auto, always, never")
	return c
}

func runInspect(cmd *cobra.Command, args []string) error {
	name, data, err := readClass(args[0])
	if err != nil {
		return err
	}
	out, res, err := rewrite.New(inspectMarker).RewriteWithStats(data)
	if err != nil {
		return err
	}
	body, err := diff.Classes(name, data, out, diff.Options{Context: inspectContext})
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if body == "" {
		fmt.Fprintf(w, "%s: no constructor returns, nothing to rewrite\n", name)
		return nil
	}
	if useColor(w, inspectColor) {
		body = diff.Colorize(body)
	}
	fmt.Fprint(w, body)
	fmt.Fprintf(w, "# %d constructors, %d markers inserted\n", res.Constructors, res.Markers)
	return nil
}

func useColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// readClass reads a class file, or an entry of a jar addressed as jar!entry.
func readClass(arg string) (string, []byte, error) {
	jar, entry, ok := strings.Cut(arg, "!")
	if !ok {
		data, err := os.ReadFile(arg)
		return filepath.Base(arg), data, err
	}
	zr, err := zip.OpenReader(jar)
	if err != nil {
		return "", nil, err
	}
	defer zr.Close()
	entry = strings.TrimPrefix(entry, "/")
	for _, f := range zr.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		return entry, data, err
	}
	return "", nil, fmt.Errorf("%s: no entry %q", jar, entry)
}
