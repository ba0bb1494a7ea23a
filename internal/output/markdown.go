package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Receipts render through glamour; below minRenderWidth the item table
// wraps unreadably.
const (
	defaultRenderWidth = 80
	minRenderWidth     = 20
)

// TerminalWidth returns the terminal width, consulting COLUMNS when stdout
// is not a tty and falling back otherwise.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultRenderWidth
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return fallback
}

// RenderMarkdown renders markdown wrapped to the terminal width.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultRenderWidth))
}

// RenderMarkdownWithWidth renders markdown at an explicit wrap width.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minRenderWidth {
		width = minRenderWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
