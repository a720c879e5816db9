// SPDX-License-Identifier: MIT

// Package display renders wrapped, scrolling alert text in a terminal.
package display

import (
	"strings"
	"time"

	"github.com/asentry/asentry/internal/threat"
	"github.com/charmbracelet/x/ansi"
)

// Scroll cadence of a panel whose text is taller than its window.
const (
	LineDelay     = time.Second
	LastLineDelay = 5 * time.Second
)

// Panel is a fixed-size window over word-wrapped text.
type Panel struct {
	Width int // columns; <= 0 disables wrapping
	Lines int // visible rows

	lines  []string
	offset int
}

// NewPanel returns an empty panel of the given size.
func NewPanel(width, lines int) *Panel {
	if lines < 1 {
		lines = 1
	}
	return &Panel{Width: width, Lines: lines, lines: []string{""}}
}

// Show replaces the text and scrolls to the top.
func (p *Panel) Show(text string) {
	p.lines = p.wrap(text)
	p.offset = 0
}

// Add appends text to the last line, rewraps it and scrolls to the end.
func (p *Panel) Add(text string) {
	last := ""
	if n := len(p.lines); n > 0 {
		last = p.lines[n-1]
		p.lines = p.lines[:n-1]
	}
	p.lines = append(p.lines, p.wrap(last+text)...)
	p.offset = p.MaxOffset()
}

// ShowUpdates lays out the alert blocks of updates one after another.
func (p *Panel) ShowUpdates(updates []threat.Update) {
	p.Show("")
	sep := ""
	for _, u := range updates {
		p.Add(sep)
		sep = "\n"
		p.Add(strings.Join(u.Lines(), "\n"))
	}
}

// ScrollNext advances one line and wraps back to the top after the last page.
func (p *Panel) ScrollNext() {
	p.offset = (p.offset + 1) % (p.MaxOffset() + 1)
}

// MaxOffset is the offset that shows the last page.
func (p *Panel) MaxOffset() int {
	return max(0, len(p.lines)-p.Lines)
}

// Offset is the index of the first visible line.
func (p *Panel) Offset() int {
	return p.offset
}

// OnLastLine reports whether the last page is showing.
func (p *Panel) OnLastLine() bool {
	return p.offset == p.MaxOffset()
}

// ScrollDelay is how long the current page stays before the next scroll.
func (p *Panel) ScrollDelay() time.Duration {
	if p.OnLastLine() {
		return LastLineDelay
	}
	return LineDelay
}

// Text returns all wrapped lines.
func (p *Panel) Text() []string {
	return append([]string(nil), p.lines...)
}

// Visible returns exactly Lines rows starting at the offset, padded with blanks.
func (p *Panel) Visible() []string {
	out := make([]string, p.Lines)
	for i := range out {
		if j := p.offset + i; j < len(p.lines) {
			out[i] = p.lines[j]
		}
	}
	return out
}

func (p *Panel) wrap(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if p.Width <= 0 || ansi.StringWidth(para) <= p.Width {
			out = append(out, para)
			continue
		}
		out = append(out, strings.Split(ansi.Wrap(para, p.Width, ""), "\n")...)
	}
	return out
}
