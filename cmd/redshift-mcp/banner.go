package main

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// isTTY returns true if the given file descriptor is a terminal.
func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// printBanner prints the redshift-mcp ASCII art banner. When useColor is
// true, ANSI escape codes are used for a red/magenta gradient.
func printBanner(w io.Writer, useColor bool) {
	// ASCII art lines for "Redshift MCP"
	lines := []string{
		`                                                                        `,
		` ____             _       _      _   __  _       __  __    ____  ____  `,
		`|  _ \   ___   __| | ___ | |__  (_) / _|| |_    |  \/  |  / ___||  _ \ `,
		`| |_) | / _ \ / _' |/ __|| '_ \ | || |_ | __|   | |\/| | | |    | |_) |`,
		`|  _ < |  __/| (_| |\__ \| | | || ||  _|| |_    | |  | | | |___ |  __/ `,
		`|_| \_\ \___| \__,_||___/|_| |_||_||_|   \__|   |_|  |_|  \____||_|    `,
		`                                                                        `,
	}

	if useColor {
		// Bold + Red → Magenta gradient
		colors := []string{
			"\033[1;31m", // bold red
			"\033[1;31m", // bold red
			"\033[1;91m", // bold bright red
			"\033[1;35m", // bold magenta
			"\033[1;95m", // bold bright magenta
			"\033[1;95m", // bold bright magenta
			"\033[0m",    // reset (blank line)
		}
		for i, line := range lines {
			color := colors[i%len(colors)]
			fmt.Fprintf(w, "%s%s\033[0m\n", color, line)
		}
	} else {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
}
