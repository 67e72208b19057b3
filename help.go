package flags

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	helpHeaderStyle = lipgloss.NewStyle().Bold(true)
	helpNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	helpValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// writeHelp prints usage, the standard options, and the subcategories and
// flags of the category at path with their current values.
func (t *Tree) writeHelp(parser *ArgParser, path string) error {
	n, err := t.categoryNode("help", path)
	if err != nil {
		return err
	}
	if err := t.loadAllUnder(n, path); err != nil {
		return err
	}
	w := parser.Output
	if w == nil {
		w = io.Discard
	}

	var b strings.Builder
	if path == "" {
		fmt.Fprintf(&b, "usage: %s [options] [flag=value ...]\n\n", parser.Name)
		b.WriteString(helpHeaderStyle.Render("options:"))
		b.WriteString("\n")
		b.WriteString(parser.fs.FlagUsages())
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "usage: %s --help %s\n\n", parser.Name, path)
	}

	var categories, flagNames []string
	for _, name := range n.names() {
		switch n.entries[name].kind {
		case KindCategory:
			categories = append(categories, name)
		case KindFlag:
			if !n.entries[name].cell.hidden {
				flagNames = append(flagNames, name)
			}
		}
	}

	if len(categories) > 0 {
		b.WriteString(helpHeaderStyle.Render("flag subcategories:"))
		b.WriteString("\n")
		width := longest(categories)
		for _, name := range categories {
			full := joinPath(path, name)
			fmt.Fprintf(&b, "  %s  %s flags\n", helpNameStyle.Width(width).Render(name), full)
		}
		b.WriteString("\n")
	}

	if len(flagNames) > 0 {
		title := "flags:"
		if path != "" {
			title = path + " flags:"
		}
		b.WriteString(helpHeaderStyle.Render(title))
		b.WriteString("\n")
		full := make([]string, len(flagNames))
		for i, name := range flagNames {
			full[i] = joinPath(path, name)
		}
		width := longest(full)
		for i, name := range flagNames {
			c := n.entries[name].cell
			value := "None"
			if resolved, err := t.resolve(full[i], path, c); err == nil {
				value = fmt.Sprintf("%#v", resolved)
			}
			line := fmt.Sprintf("  %s  %s", helpNameStyle.Width(width).Render(full[i]), helpValueStyle.Render("(default: "+value+")"))
			if c.help != "" {
				line += " " + c.help
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Note: specify additional flags in the form <flagName>=<value>.\n")
	_, err = io.WriteString(w, b.String())
	return err
}

func longest(values []string) int {
	width := 0
	for _, value := range values {
		if len(value) > width {
			width = len(value)
		}
	}
	return width
}
