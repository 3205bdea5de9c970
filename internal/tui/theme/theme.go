// Package theme defines the color palettes for the live session view.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
)

// Theme defines the color roles used by the live view.
type Theme struct {
	Name         string
	Surface      lipgloss.Color // card and panel backgrounds
	Border       lipgloss.Color
	BorderAccent lipgloss.Color // focused or running state
	TextDim      lipgloss.Color // hints, disabled
	TextMuted    lipgloss.Color // labels, metadata
	TextPrimary  lipgloss.Color
	Accent       lipgloss.Color
	AccentBright lipgloss.Color
	Green        lipgloss.Color
	Orange       lipgloss.Color
	Red          lipgloss.Color
	Blue         lipgloss.Color
	Yellow       lipgloss.Color
	Cyan         lipgloss.Color
}

// Active is the currently selected theme.
var Active = FlexokiDark

// FlexokiDark is the default, a warm paper-inspired dark palette.
var FlexokiDark = Theme{
	Name:         "flexoki-dark",
	Surface:      lipgloss.Color("#1C1B1A"),
	Border:       lipgloss.Color("#403E3C"),
	BorderAccent: lipgloss.Color("#3AA99F"),
	TextDim:      lipgloss.Color("#575653"),
	TextMuted:    lipgloss.Color("#878580"),
	TextPrimary:  lipgloss.Color("#FFFCF0"),
	Accent:       lipgloss.Color("#3AA99F"),
	AccentBright: lipgloss.Color("#5BC8BE"),
	Green:        lipgloss.Color("#879A39"),
	Orange:       lipgloss.Color("#DA702C"),
	Red:          lipgloss.Color("#D14D41"),
	Blue:         lipgloss.Color("#4385BE"),
	Yellow:       lipgloss.Color("#D0A215"),
	Cyan:         lipgloss.Color("#24837B"),
}

// CatppuccinMocha is a soft pastel palette.
var CatppuccinMocha = Theme{
	Name:         "catppuccin-mocha",
	Surface:      lipgloss.Color("#313244"),
	Border:       lipgloss.Color("#585B70"),
	BorderAccent: lipgloss.Color("#89B4FA"),
	TextDim:      lipgloss.Color("#6C7086"),
	TextMuted:    lipgloss.Color("#A6ADC8"),
	TextPrimary:  lipgloss.Color("#CDD6F4"),
	Accent:       lipgloss.Color("#89B4FA"),
	AccentBright: lipgloss.Color("#B4D0FB"),
	Green:        lipgloss.Color("#A6E3A1"),
	Orange:       lipgloss.Color("#FAB387"),
	Red:          lipgloss.Color("#F38BA8"),
	Blue:         lipgloss.Color("#89B4FA"),
	Yellow:       lipgloss.Color("#F9E2AF"),
	Cyan:         lipgloss.Color("#94E2D5"),
}

// TokyoNight is a cool blue and purple palette.
var TokyoNight = Theme{
	Name:         "tokyo-night",
	Surface:      lipgloss.Color("#24283B"),
	Border:       lipgloss.Color("#565F89"),
	BorderAccent: lipgloss.Color("#7AA2F7"),
	TextDim:      lipgloss.Color("#565F89"),
	TextMuted:    lipgloss.Color("#A9B1D6"),
	TextPrimary:  lipgloss.Color("#C0CAF5"),
	Accent:       lipgloss.Color("#7AA2F7"),
	AccentBright: lipgloss.Color("#A9C1FF"),
	Green:        lipgloss.Color("#9ECE6A"),
	Orange:       lipgloss.Color("#FF9E64"),
	Red:          lipgloss.Color("#F7768E"),
	Blue:         lipgloss.Color("#7AA2F7"),
	Yellow:       lipgloss.Color("#E0AF68"),
	Cyan:         lipgloss.Color("#7DCFFF"),
}

// Terminal uses ANSI 16 colors only.
var Terminal = Theme{
	Name:         "terminal",
	Surface:      lipgloss.Color("0"),
	Border:       lipgloss.Color("8"),
	BorderAccent: lipgloss.Color("6"),
	TextDim:      lipgloss.Color("8"),
	TextMuted:    lipgloss.Color("7"),
	TextPrimary:  lipgloss.Color("15"),
	Accent:       lipgloss.Color("6"),
	AccentBright: lipgloss.Color("14"),
	Green:        lipgloss.Color("2"),
	Orange:       lipgloss.Color("3"),
	Red:          lipgloss.Color("1"),
	Blue:         lipgloss.Color("4"),
	Yellow:       lipgloss.Color("3"),
	Cyan:         lipgloss.Color("6"),
}

// All available themes.
var All = []Theme{FlexokiDark, CatppuccinMocha, TokyoNight, Terminal}

// Names lists the theme names in display order.
func Names() []string {
	return lo.Map(All, func(t Theme, _ int) string { return t.Name })
}

// ByName returns a theme by its name, defaulting to FlexokiDark.
func ByName(name string) Theme {
	if t, ok := lo.Find(All, func(t Theme) bool { return t.Name == name }); ok {
		return t
	}
	return FlexokiDark
}

// SetActive sets the active theme by name.
func SetActive(name string) {
	Active = ByName(name)
}
