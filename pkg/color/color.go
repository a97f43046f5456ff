// Package color picks terminal colors for CLI output on top of fatih/color.
package color

import (
	"hash/fnv"
	"os"
	"strings"

	"github.com/fatih/color"
)

// palette for keyed prefixes
var keyColors = []*color.Color{
	color.New(color.FgHiRed),
	color.New(color.FgHiGreen),
	color.New(color.FgHiYellow),
	color.New(color.FgHiBlue),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiCyan),
	color.New(color.FgRed),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
	color.New(color.FgCyan),
}

var (
	Bold    = color.New(color.Bold)
	Dim     = color.New(color.Faint)
	Success = color.New(color.FgGreen, color.Bold)
	Failure = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
)

// Init decides whether output is colored. fatih/color already honours
// NO_COLOR and non-terminal stdout; FORCE_COLOR, CI and dumb terminals are
// handled here.
func Init() {
	color.NoColor = !isColorSupported(color.NoColor)
}

func isColorSupported(noColor bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	if colorTerm := os.Getenv("COLORTERM"); colorTerm == "truecolor" || colorTerm == "24bit" {
		return true
	}
	if strings.Contains(term, "color") ||
		strings.Contains(term, "ansi") ||
		strings.Contains(term, "xterm") ||
		strings.Contains(term, "screen") {
		return !noColor
	}
	return false
}

// ForKey returns a color that is stable for key across runs.
func ForKey(key string) *color.Color {
	h := fnv.New32a()
	h.Write([]byte(key))
	return keyColors[h.Sum32()%uint32(len(keyColors))]
}

// Prefix formats "[key]" in the key's color.
func Prefix(key string) string {
	return ForKey(key).Sprint("[" + key + "]")
}
