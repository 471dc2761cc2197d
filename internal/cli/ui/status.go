package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Printer writes one-line status messages with a leading symbol
type Printer struct {
	w       io.Writer
	noColor bool
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, noColor: noColor}
}

func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	}
	return c
}

// Success prints a green "✓" line
func (p *Printer) Success(format string, args ...interface{}) {
	p.paint(color.FgGreen, color.Bold).Fprintf(p.w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Failure prints a red "✗" line
func (p *Printer) Failure(format string, args ...interface{}) {
	p.paint(color.FgRed, color.Bold).Fprintf(p.w, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Info prints a cyan "ℹ" line
func (p *Printer) Info(format string, args ...interface{}) {
	p.paint(color.FgCyan).Fprintf(p.w, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a yellow "⚠" line
func (p *Printer) Warning(format string, args ...interface{}) {
	p.paint(color.FgYellow, color.Bold).Fprintf(p.w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Problem describes a failure with optional remedies
type Problem struct {
	Title       string
	Detail      string
	Suggestions []string
	Hints       []string
}

// Problem prints an indented failure block:
//
//	✗ Unrecognized format: standard_instituton
//	   sheet "Executive" cannot be loaded
//
//	   Did you mean: standard_institution?
//
//	   → List formats: sigla load --help
func (p *Printer) Problem(pr Problem) {
	p.Failure("%s", pr.Title)

	body := p.paint(color.FgRed)
	if pr.Detail != "" {
		body.Fprintf(p.w, "   %s\n", pr.Detail)
	}
	if len(pr.Suggestions) > 0 {
		fmt.Fprintln(p.w)
		p.paint(color.FgYellow).Fprintf(p.w, "   Did you mean: %s?\n", strings.Join(pr.Suggestions, ", "))
	}
	if len(pr.Hints) > 0 {
		fmt.Fprintln(p.w)
		cyan := p.paint(color.FgCyan)
		for _, hint := range pr.Hints {
			cyan.Fprintf(p.w, "   → %s\n", hint)
		}
	}
}
