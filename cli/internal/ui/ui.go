// Package ui renders CLI output: status lines, result tables and SQL.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	// CodeStyle frames compiled statements.
	CodeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(0, 1)
)

// fatih/color printers for inline labels; they honor color.NoColor.
var (
	keyColor  = color.New(color.FgCyan, color.Bold)
	nullColor = color.New(color.Faint)
)

// plain is set by DisableColor.
var plain bool

// Null is the marker shown for SQL NULL in tables.
const Null = "NULL"

func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError writes to stderr so it never mixes with json/yaml output.
func PrintError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

func PrintWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, WarningStyle.Render("! "+fmt.Sprintf(format, args...)))
}

func PrintInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, SecondaryStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintSection prints a bold heading above a table or listing.
func PrintSection(w io.Writer, title string) {
	fmt.Fprintln(w, TitleStyle.Render(title))
}

// RenderTable lays out rows under a header row.
func RenderTable(headers []string, rows [][]string) (string, error) {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, headers)
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func PrintTable(w io.Writer, headers []string, rows [][]string) error {
	out, err := RenderTable(headers, rows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// NullCell returns the NULL marker, dimmed when color is on.
func NullCell() string {
	return nullColor.Sprint(Null)
}

// PrintCodeBlock renders code as a fenced markdown block with syntax
// highlighting. With color disabled, or if rendering fails, the code is
// framed with CodeStyle instead.
func PrintCodeBlock(w io.Writer, code string, language string) {
	if !plain {
		if out, err := RenderCode(code, language); err == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	if language != "" {
		fmt.Fprintln(w, SecondaryStyle.Render(" "+language))
	}
	fmt.Fprintln(w, CodeStyle.Render(code))
}

// RenderCode renders code through glamour as a fenced block.
func RenderCode(code string, language string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return "", err
	}
	return r.Render("```" + language + "\n" + strings.TrimRight(code, "\n") + "\n```\n")
}

// Key prints "label: value" with the label highlighted.
func Key(w io.Writer, label string, value any) {
	keyColor.Fprintf(w, "%s: ", label)
	fmt.Fprintln(w, value)
}

// Spinner starts a spinner on stderr, or returns nil when it cannot.
func Spinner(message string) *pterm.SpinnerPrinter {
	spinner, err := pterm.DefaultSpinner.WithWriter(os.Stderr).WithRemoveWhenDone(true).Start(message)
	if err != nil {
		return nil
	}
	return spinner
}

func StopSpinner(s *pterm.SpinnerPrinter) {
	if s != nil {
		_ = s.Stop()
	}
}

// DisableColor turns off styling for every printer.
func DisableColor() {
	plain = true
	color.NoColor = true
	pterm.DisableStyling()
	pterm.DisableColor()
}
