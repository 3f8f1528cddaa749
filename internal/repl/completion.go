package repl

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileCommands take a story file path as their first argument
var fileCommands = map[string]bool{"load": true, "diff": true, "elaborate": true}

// completer completes command names and, after a file command, story file
// paths
type completer struct {
	commands []string
}

func newCompleter(commands []string) *completer {
	sorted := append([]string(nil), commands...)
	sort.Strings(sorted)
	return &completer{commands: sorted}
}

// Do implements readline.AutoCompleter
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	input := string(line[:pos])
	candidates, prefix := c.getCompletions(input)

	out := make([][]rune, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, []rune(strings.TrimPrefix(cand, prefix)))
	}
	return out, len([]rune(prefix))
}

// getCompletions returns the full candidates for the word being typed and
// that word
func (c *completer) getCompletions(input string) ([]string, string) {
	fields := strings.Fields(input)
	typingNew := input == "" || strings.HasSuffix(input, " ")

	switch {
	case len(fields) == 0 || (len(fields) == 1 && !typingNew):
		prefix := ""
		if len(fields) == 1 {
			prefix = fields[0]
		}
		var out []string
		for _, cmd := range c.commands {
			if strings.HasPrefix(cmd, prefix) {
				out = append(out, cmd+" ")
			}
		}
		return out, prefix

	case fileCommands[fields[0]] && (len(fields) == 1 || (len(fields) == 2 && !typingNew)):
		prefix := ""
		if len(fields) == 2 {
			prefix = fields[1]
		}
		return storyFiles(prefix), prefix
	}
	return nil, ""
}

// storyFiles lists YAML and JSON files and directories matching prefix
func storyFiles(prefix string) []string {
	dir, base := filepath.Split(prefix)
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	entries, err := os.ReadDir(readDir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, base) || (strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".")) {
			continue
		}
		if e.IsDir() {
			out = append(out, dir+name+string(filepath.Separator))
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml", ".json":
			out = append(out, dir+name+" ")
		}
	}
	return out
}
