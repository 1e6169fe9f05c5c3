package logging

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var forceColorOnce sync.Once

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	msgStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	valStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	sepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	blockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("245")).
			Padding(0, 1)
)

// FormatEventANSI renders event as a colored terminal line. JSON-shaped
// fields are drawn as boxed blocks under the line.
func FormatEventANSI(event Event) string {
	forceColorOnce.Do(func() {
		lipgloss.SetColorProfile(termenv.TrueColor)
	})
	label, badge := levelBadge(event.Level)
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		timeStyle.Render(event.Time.Format("15:04:05.000")), " ",
		badge.Render(label), " ",
		msgStyle.Render(event.Message),
	)
	if len(event.Fields) == 0 {
		return line + "\n"
	}

	parts := []string{}
	blocks := []string{}
	for _, key := range orderedFieldKeys(event.Fields) {
		if pretty, ok := prettyJSONString(event.Fields[key]); ok {
			blocks = append(blocks, keyStyle.Render(key)+sepStyle.Render("=")+"\n"+blockStyle.Render(pretty))
			continue
		}
		parts = append(parts, keyStyle.Render(key)+sepStyle.Render("=")+valStyle.Render(formatFieldValue(event.Fields[key])))
	}
	if len(parts) > 0 {
		line += "  " + strings.Join(parts, " ")
	}
	for _, block := range blocks {
		line += "\n  " + block
	}
	return line + "\n"
}

func levelBadge(level slog.Level) (string, lipgloss.Style) {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch {
	case level <= slog.LevelDebug:
		return "DEBUG", base.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("240"))
	case level <= slog.LevelInfo:
		return "INFO", base.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("31"))
	case level <= slog.LevelWarn:
		return "WARN", base.Foreground(lipgloss.Color("234")).Background(lipgloss.Color("214"))
	default:
		return "ERROR", base.Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160"))
	}
}
