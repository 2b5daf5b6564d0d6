// Package banner prints the startup splash and a short summary of the
// loaded configuration.
package banner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"trafficsim/internal/config"
	"trafficsim/internal/tui/styles"
)

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
 _              __  __ _          _
| |_ _ __ __ _ / _|/ _(_) ___ ___(_)_ __ ___
| __| '__/ _' | |_| |_| |/ __/ __| | '_ ' _ \
| |_| | | (_| |  _|  _| | (__\__ \ | | | | | |
 \__|_|  \__,_|_| |_| |_|\___|___/_|_| |_| |_|`

	return "\n" + style.Render(ascii) + "\n"
}

// Summary renders the key run parameters so an operator can eyeball the
// configuration before traffic starts.
func Summary(cfg *config.Config, configPath string) string {
	var b strings.Builder

	line := func(key string, format string, args ...any) {
		b.WriteString(styles.Subtle.Render(fmt.Sprintf("  %-18s", key)))
		b.WriteString(styles.Text.Render(fmt.Sprintf(format, args...)))
		b.WriteString("\n")
	}

	line("config", "%s", configPath)
	line("workers", "%d", cfg.Simulation.Workers)
	line("target rate", "%.1f req/s", cfg.Simulation.RequestsPerSecond)
	if cfg.Simulation.RampUpSeconds > 0 {
		line("ramp-up", "%ds", cfg.Simulation.RampUpSeconds)
	}
	if cfg.Simulation.DurationMinutes > 0 {
		line("duration", "%dm", cfg.Simulation.DurationMinutes)
	} else {
		line("duration", "until interrupted")
	}
	line("user types", "%s", strings.Join(cfg.UserTypeNames(), ", "))

	regions := make([]string, len(cfg.Regions))
	for i, r := range cfg.Regions {
		regions[i] = r.Region
	}
	line("regions", "%s", strings.Join(regions, ", "))

	services := cfg.ServiceNames()
	sort.Strings(services)
	line("services", "%s", strings.Join(services, ", "))

	return b.String()
}
