package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorNeonCyan = "\033[96m"
)

const banner = `
  ___ _    _   ___ _  _ ___ ___ _  _  ___ _  _
 / __| |_ /_\ |_ _| \| | _ ) __| \| |/ __| || |
| (__| ' \/ _ \ | || .' | _ \ _|| .' | (__| __ |
 \___|_||_/_/ \_\___|_|\_|___/___|_|\_|\___|_||_|

     >> DOCUMENT-DRIVEN PROMPT CHAINS <<
`

func termWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// PrintBanner writes the centered banner to stderr when it is a terminal.
// Piped or redirected output stays clean.
func PrintBanner() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	writeBanner(os.Stderr, termWidth(os.Stderr))
}

func writeBanner(w io.Writer, width int) {
	for _, l := range strings.Split(banner, "\n") {
		padding := max((width-len(l))/2, 0)
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}
