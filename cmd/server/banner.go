package main

import (
	"fmt"
	"strings"

	"github.com/mazznoer/colorgrad"
)

// banner returns the startup banner, shaded left to right with a gradient
// unless plain is set.
func banner(version string, plain bool) string {
	art := `
 _ _                  _           _
| (_)_ __   ___   ___| |__   __ _| |_
| | | '_ \ / _ \ / __| '_ \ / _' | __|
| | | | | |  __/| (__| | | | (_| | |_
|_|_|_| |_|\___| \___|_| |_|\__,_|\__|
 one line at a time  [v` + version + `]
`
	if plain {
		return art
	}

	grad, err := colorgrad.NewGradient().
		HtmlColors("#0f9b8eff", "#f7f7f2ff").
		Build()
	if err != nil {
		return art
	}

	lines := strings.Split(art, "\n")

	maxLen := 0
	for _, line := range lines {
		maxLen = max(maxLen, len(line))
	}

	colors := grad.Colors(uint(maxLen))
	var shaded strings.Builder
	for _, line := range lines {
		for i, ch := range line {
			r, g, b, _ := colors[i].RGBA255()
			fmt.Fprintf(&shaded, "\x1b[38;2;%d;%d;%dm%c", r, g, b, ch)
		}
		shaded.WriteString("\x1b[0m\n")
	}
	return shaded.String()
}
