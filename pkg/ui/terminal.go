package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"tweetharvest/pkg/paginator"
)

// Banner printed at the start of a harvest
const Banner = `
  ┌─────────────────────────────────────────────┐
  │  tweetharvest · full-archive search to NDJSON │
  └─────────────────────────────────────────────┘
`

// Printer writes status lines, colored when the destination is a terminal
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a printer for w. Color is enabled only when w is a
// terminal file descriptor and NO_COLOR is unset.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, color: useColors(w)}
}

func useColors(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) paint(attr color.Attribute, text string) string {
	if !p.color {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}

func (p *Printer) Cyan(s string) string   { return p.paint(color.FgCyan, s) }
func (p *Printer) Yellow(s string) string { return p.paint(color.FgYellow, s) }
func (p *Printer) Red(s string) string    { return p.paint(color.FgRed, s) }
func (p *Printer) Green(s string) string  { return p.paint(color.FgGreen, s) }
func (p *Printer) Dim(s string) string    { return p.paint(color.Faint, s) }

// PrintBanner prints the banner
func (p *Printer) PrintBanner() {
	fmt.Fprint(p.out, p.Cyan(Banner))
}

// PrintError prints an error line, appending err when given
func (p *Printer) PrintError(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.Red("✗ "+msg))
}

// PrintSuccess prints a success line
func (p *Printer) PrintSuccess(msg string) {
	fmt.Fprintln(p.out, p.Green("✓ "+msg))
}

// PrintWarning prints a warning line
func (p *Printer) PrintWarning(msg string) {
	fmt.Fprintln(p.out, p.Yellow("! "+msg))
}

// PrintInfo prints a label/value pair
func (p *Printer) PrintInfo(label, value string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.Cyan(label), p.Yellow(value))
}

// PrintPlan prints the request plan before a run starts
func (p *Printer) PrintPlan(plan paginator.Plan) {
	p.PrintInfo("Target", fmt.Sprintf("%d records", plan.Target))
	p.PrintInfo("Plan", fmt.Sprintf("%d full pages of %d, remainder %d (at most %d requests)",
		plan.FullPages, plan.PageSize, plan.Remainder, plan.MaxRequests()))
}

// PrintSummary prints the outcome of a finished run
func (p *Printer) PrintSummary(s paginator.Summary) {
	fmt.Fprintln(p.out)
	p.PrintInfo("State", s.FinalState.String())
	p.PrintInfo("Requests", fmt.Sprintf("%d", s.Requests))
	p.PrintInfo("Pages", fmt.Sprintf("%d", s.Pages))
	p.PrintInfo("Records", fmt.Sprintf("%d / %d", s.Records, s.Plan.Target))
	p.PrintInfo("Duration", s.Duration.Round(time.Millisecond).String())
	if s.LastToken != "" {
		p.PrintInfo("Last token", p.Dim(s.LastToken))
	}
}
