package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/shelfscan/internal/config"
)

// Catppuccin Mocha palette, mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorTeal   = lipgloss.Color("#94e2d5")
	ColorMauve  = lipgloss.Color("#cba6f7")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorDim    = lipgloss.Color("#3a4055")
	ColorBright = lipgloss.Color("#cdd6f4")
)

// Pre-built styles, rebuilt by rebuildStyles() after color changes.
var (
	styleHeader        lipgloss.Style
	styleHeaderLabel   lipgloss.Style
	styleDivider       lipgloss.Style
	styleIconFound     lipgloss.Style
	styleIconAdded     lipgloss.Style
	styleIconFailed    lipgloss.Style
	styleIconDuplicate lipgloss.Style
	styleCode          lipgloss.Style
	styleTitle         lipgloss.Style
	styleAuthors       lipgloss.Style
	styleLibrary       lipgloss.Style
	styleBuffer        lipgloss.Style
	styleError         lipgloss.Style
	styleWarning       lipgloss.Style
	styleKeybindKey    lipgloss.Style
	styleKeybindLabel  lipgloss.Style
	styleBigNumber     lipgloss.Style
	styleSparkline     lipgloss.Style
	styleStatus        lipgloss.Style
	styleModeLookup    lipgloss.Style
	styleModeAdd       lipgloss.Style
	stylePrompt        lipgloss.Style
	styleInput         lipgloss.Style
	styleSelected      lipgloss.Style
)

func init() {
	rebuildStyles()
}

// rebuildStyles reconstructs all lipgloss styles from the current color vars.
func rebuildStyles() {
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	styleHeaderLabel = lipgloss.NewStyle().Bold(true).Foreground(ColorMauve)
	styleDivider = lipgloss.NewStyle().Foreground(ColorDim)
	styleIconFound = lipgloss.NewStyle().Foreground(ColorGreen)
	styleIconAdded = lipgloss.NewStyle().Foreground(ColorTeal)
	styleIconFailed = lipgloss.NewStyle().Foreground(ColorRed)
	styleIconDuplicate = lipgloss.NewStyle().Foreground(ColorMuted)
	styleCode = lipgloss.NewStyle().Foreground(ColorMuted)
	styleTitle = lipgloss.NewStyle().Foreground(ColorBright).Bold(true)
	styleAuthors = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	styleLibrary = lipgloss.NewStyle().Foreground(ColorTeal)
	styleBuffer = lipgloss.NewStyle().Foreground(ColorBlue)
	styleError = lipgloss.NewStyle().Foreground(ColorRed)
	styleWarning = lipgloss.NewStyle().Foreground(ColorYellow)
	styleKeybindKey = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
	styleKeybindLabel = lipgloss.NewStyle().Foreground(ColorMuted)
	styleBigNumber = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	styleSparkline = lipgloss.NewStyle().Foreground(ColorBlue)
	styleStatus = lipgloss.NewStyle().Foreground(ColorYellow).Italic(true)
	styleModeLookup = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	styleModeAdd = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	stylePrompt = lipgloss.NewStyle().Foreground(ColorMuted)
	styleInput = lipgloss.NewStyle().Foreground(ColorBright)
	styleSelected = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Blue != nil {
		ColorBlue = lipgloss.Color(*tc.Blue)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Teal != nil {
		ColorTeal = lipgloss.Color(*tc.Teal)
	}
	if tc.Mauve != nil {
		ColorMauve = lipgloss.Color(*tc.Mauve)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	if tc.Dim != nil {
		ColorDim = lipgloss.Color(*tc.Dim)
	}
	if tc.Bright != nil {
		ColorBright = lipgloss.Color(*tc.Bright)
	}
	rebuildStyles()
}
