package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/techmap/pkg/dataset"
)

// stdout receives all status output. Tests swap it.
var stdout io.Writer = os.Stdout

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220") // usage bars, current year
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

// Exported styles are shared with the scrubber view.
var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleActive and StyleInactive frame the two planes.
	StyleActive   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorCyan).Padding(0, 1)
	StyleInactive = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

var (
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(14)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleUsage       = lipgloss.NewStyle().Foreground(colorYellow)
)

// statusKind selects the icon of a status line.
type statusKind int

const (
	statusSuccess statusKind = iota
	statusError
	statusInfo
)

var statusIcons = map[statusKind]string{
	statusSuccess: lipgloss.NewStyle().Foreground(colorGreen).Render("✓"),
	statusError:   lipgloss.NewStyle().Foreground(colorRed).Render("✗"),
	statusInfo:    lipgloss.NewStyle().Foreground(colorGray).Render("›"),
}

func status(kind statusKind, format string, args ...any) {
	fmt.Fprintln(stdout, statusIcons[kind]+" "+fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) { status(statusSuccess, format, args...) }
func printError(format string, args ...any)   { status(statusError, format, args...) }
func printInfo(format string, args ...any)    { status(statusInfo, format, args...) }

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written file path.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render("→")+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printStats prints the chip count of each plane and whether the layout
// came from the cache, e.g. "  7 active · 12 inactive · cached".
func printStats(active, inactive int, cached bool) {
	origin := StyleDim.Render("fresh")
	if cached {
		origin = lipgloss.NewStyle().Foreground(colorGreen).Render("cached")
	}
	sep := StyleDim.Render(" · ")
	fmt.Fprintln(stdout, "  "+
		StyleNumber.Render(fmt.Sprint(active))+StyleDim.Render(" active")+sep+
		StyleDim.Render(fmt.Sprintf("%d inactive", inactive))+sep+origin)
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// usageBar draws a usage score as a fixed-width bar of MaxUsage cells.
func usageBar(usage int) string {
	usage = min(max(usage, 0), dataset.MaxUsage)
	return styleUsage.Render(strings.Repeat("█", usage)) +
		StyleDim.Render(strings.Repeat("░", dataset.MaxUsage-usage))
}
