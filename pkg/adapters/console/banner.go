package console

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the startup banner to w using the terminal's color profile.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"             _             _", "#38bdf8"},
		{"  _ __ ___  (_)_ __  _   _| |_ ___  ___", "#22d3ee"},
		{" | '_ ` _ \\ | | '_ \\| | | | __/ _ \\/ __|", "#2dd4bf"},
		{" | | | | | || | | | | |_| | ||  __/\\__ \\", "#34d399"},
		{" |_| |_| |_||_|_| |_|\\__,_|\\__\\___||___/", "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  meeting protocols, "+version).Faint())
	fmt.Fprintln(w)
}
