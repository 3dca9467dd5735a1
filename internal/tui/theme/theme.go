package theme

import (
	"maps"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// IconSet maps semantic names to icons.
type IconSet map[string]string

// Colors is the palette shared by the progress view and the report.
type Colors struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// BadgeKind selects a badge variant.
type BadgeKind int

const (
	BadgeInfo BadgeKind = iota
	BadgeSuccess
	BadgeWarning
	BadgeError
	BadgeMuted
)

// Theme bundles colors, panel border and icons.
type Theme struct {
	colors   Colors
	border   lipgloss.Border
	icons    IconSet
	fallback IconSet
}

// Option configures a Theme.
type Option func(*Theme)

// WithIconSet overrides the icons.
func WithIconSet(set IconSet) Option {
	return func(t *Theme) { t.icons = maps.Clone(set) }
}

// WithColors overrides the palette.
func WithColors(colors Colors) Option {
	return func(t *Theme) { t.colors = colors }
}

// New constructs a Theme with overrides applied on top of the defaults.
func New(opts ...Option) Theme {
	t := Theme{
		colors: Colors{
			Primary:    lipgloss.Color("#3a6b4a"),
			Secondary:  lipgloss.Color("#5a8c6a"),
			Accent:     lipgloss.Color("#8fc279"),
			Background: lipgloss.Color("#f8f8f8"),
			Muted:      lipgloss.Color("#9ba8c0"),
			Success:    lipgloss.Color("#5dc796"),
			Warning:    lipgloss.Color("#e5a54b"),
			Error:      lipgloss.Color("#f04c56"),
		},
		border:   lipgloss.RoundedBorder(),
		icons:    defaultIconSet(),
		fallback: maps.Clone(asciiIcons),
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.icons == nil {
		t.icons = defaultIconSet()
	}
	return t
}

// Default returns the default Theme.
func Default() Theme {
	return New()
}

func (t Theme) Colors() Colors {
	return t.colors
}

// Icon returns the named icon, the ASCII fallback, or "".
func (t Theme) Icon(name string) string {
	if icon, ok := t.icons[name]; ok {
		return icon
	}
	return t.fallback[name]
}

func (t Theme) HeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Background(t.colors.Primary).
		Foreground(t.colors.Background).
		Align(lipgloss.Center)
}

func (t Theme) StatusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(t.colors.Secondary).
		Foreground(t.colors.Background).
		Padding(0, 1)
}

func (t Theme) PanelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(t.border).
		BorderForeground(t.colors.Accent).
		Padding(0, 1)
}

// BadgeStyle returns the badge style for kind.
func (t Theme) BadgeStyle(kind BadgeKind) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(t.colors.Background)

	switch kind {
	case BadgeSuccess:
		return base.Background(t.colors.Success)
	case BadgeWarning:
		return base.Background(t.colors.Warning)
	case BadgeError:
		return base.Background(t.colors.Error)
	case BadgeMuted:
		return base.Background(t.colors.Muted)
	default:
		return base.Background(t.colors.Accent)
	}
}

// ProgressGradient returns the two gradient stops for progress bars.
func (t Theme) ProgressGradient() (string, string) {
	return string(t.colors.Primary), string(t.colors.Accent)
}

// defaultIconSet picks ASCII icons for terminals that render emoji poorly.
func defaultIconSet() IconSet {
	if isLimitedTerminal() {
		return maps.Clone(asciiIcons)
	}
	return maps.Clone(emojiIcons)
}

func isLimitedTerminal() bool {
	if os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "" || os.Getenv("SSH_CONNECTION") != "" {
		return true
	}
	return runtime.GOOS == "windows"
}

var emojiIcons = IconSet{
	"movie":        "🎬",
	"tv":           "📺",
	"anime-movie":  "🎞️",
	"anime-series": "🌸",
	"sorted":       "✅",
	"mismatched":   "🔁",
	"errored":      "❌",
	"skipped":      "⏭️",
	"folder":       "📁",
	"stats":        "📊",
	"unknown":      "❓",
}

var asciiIcons = IconSet{
	"movie":        "[M]",
	"tv":           "[TV]",
	"anime-movie":  "[AM]",
	"anime-series": "[AS]",
	"sorted":       "[v]",
	"mismatched":   "[~]",
	"errored":      "[!]",
	"skipped":      "[-]",
	"folder":       "[D]",
	"stats":        "[*]",
	"unknown":      "[?]",
}
