package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpIntro = `# flipsim

Every session flips a fair coin until it sees the selected pattern or hits
the flip limit. The gauge shows how many sessions are done; **Actual EV** is
the mean flip count of sessions that found the pattern.

Run patterns use the exact expectation 2^(L+1) - 2. Alternating and
sequence patterns show 2^L, which is only an approximation, so expect a
visible deviation for them.
`

// helpMarkdown builds the help page from the key bindings.
func helpMarkdown(keys KeyMap) string {
	var b strings.Builder
	b.WriteString(helpIntro)
	b.WriteString("\n## Keys\n\n| Key | Action |\n|---|---|\n")
	for _, k := range keys.All() {
		h := k.Help()
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\nPress `esc` or `?` to close.\n")
	return b.String()
}

// renderHelp renders the help page for the given width, falling back to the
// raw markdown if glamour fails.
func renderHelp(keys KeyMap, width int) string {
	md := helpMarkdown(keys)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
