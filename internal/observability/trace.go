package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var traceStyle = lipgloss.NewStyle().
	Background(lipgloss.Color("4")).
	Foreground(lipgloss.Color("15")).
	Padding(0, 1)

// Tracer prints highlighted blocks to the console so step output stands out from the formatter's.
type Tracer struct {
	out io.Writer
}

// NewTracer returns a Tracer writing to out.
func NewTracer(out io.Writer) *Tracer {
	return &Tracer{out: out}
}

// Trace writes args, space separated, inside a ">>>>> ... <<<<<" banner.
func (t *Tracer) Trace(args ...any) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	block := ">>>>>\n" + strings.Join(parts, " ") + "\n<<<<<"
	fmt.Fprintln(t.out, "\n"+traceStyle.Render(block))
}
