package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kalambet/smartnotes/internal/conversation"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/ingestion"
)

var (
	colorRed    = newColor(color.FgRed)
	colorGreen  = newColor(color.FgGreen)
	colorYellow = newColor(color.FgYellow)
	colorCyan   = newColor(color.FgCyan)
	colorBold   = newColor(color.Bold)
	colorFaint  = newColor(color.Faint)
)

// newColor returns a color that always emits escapes; the --no-color flag
// and non-terminal detection are handled by colorize.
func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

func colorize(c *color.Color, text string) string {
	if noColor {
		return text
	}
	return c.Sprint(text)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// writeTurn prints an assistant turn: the answer, who produced it and the
// cited sources.
func writeTurn(w io.Writer, t conversation.Turn) {
	fmt.Fprintln(w, strings.TrimSpace(t.Content))
	fmt.Fprintln(w, colorize(colorFaint, fmt.Sprintf("(%s, %s)", providerLabel(t.ProviderUsed), t.ModelUsed)))
	if len(t.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(colorBold, "Sources:"))
	for _, src := range t.Sources {
		line := "  • " + src.SourceName
		if label := src.PageLabel(); label != "" {
			line += " (" + label + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func writeUploadResult(w io.Writer, name string, res *gateway.UploadResult) {
	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("Stored %d chunk(s).", res.ChunksStored)
	}
	if res.AlreadyExisted {
		fmt.Fprintf(w, "%s %s\n", colorize(colorYellow, "="), msg)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", colorize(colorGreen, "✓"), msg, colorize(colorFaint, "("+name+")"))
}

func writeRecent(w io.Writer, recent []ingestion.Record) {
	if len(recent) == 0 {
		return
	}
	fmt.Fprintln(w, colorize(colorBold, "Recently uploaded:"))
	for _, r := range recent {
		fmt.Fprintf(w, "  %s  %s\n", colorize(colorCyan, r.UploadedAt.Format("15:04:05")), r.Name)
	}
}

// providerLabel renders a backend-reported provider, falling back to the raw
// value for providers this client does not know.
func providerLabel(p string) string {
	if gp := gateway.Provider(p); gp.Valid() {
		return gp.Label()
	}
	return p
}
