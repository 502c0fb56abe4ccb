package display

import (
	"fmt"
	"io"

	"github.com/backmassage/darfix/internal/term"
)

// PrintBanner writes the ASCII art banner to w; uses Magenta if colors are enabled.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, term.Magenta)
	fmt.Fprint(w, `     _            __ _
  __| | __ _ _ __/ _(_)_  __
 / _`+"`"+` |/ _`+"`"+` | '__| |_| \ \/ /
| (_| | (_| | |  |  _| |>  <
 \__,_|\__,_|_|  |_| |_/_/\_\
`)
	fmt.Fprintln(w, term.NC)
}
