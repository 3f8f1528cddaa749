package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/steveyegge/elab/internal/delta"
)

// UnifiedDiff returns a unified diff between the old and new content of a
// modified item. Added and removed items have no diff.
func UnifiedDiff(c delta.SectionChange) string {
	if c.OldContent == nil || c.NewContent == nil {
		return ""
	}
	before, after := withNewline(*c.OldContent), withNewline(*c.NewContent)
	name := fmt.Sprintf("%s/%s", c.Section, c.ItemID)
	edits := myers.ComputeEdits(span.URIFromPath(name), before, after)
	if len(edits) == 0 {
		return ""
	}
	return fmt.Sprint(gotextdiff.ToUnified("a/"+name, "b/"+name, before, edits))
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// writeDiff prints a unified diff indented, coloring added and removed lines
func writeDiff(w io.Writer, diff string) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprintf(w, "      %s\n", line)
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintf(w, "      %s\n", cyan(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintf(w, "      %s\n", green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintf(w, "      %s\n", red(line))
		default:
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}
