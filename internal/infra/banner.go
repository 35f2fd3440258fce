package infra

import (
	"fmt"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the run mode.
func PrintBanner(cfg *Config) {
	mode := "LIVE"
	modeDesc := "NOTIFICATIONS WILL BE SENT"
	color := ColorGreen

	if cfg.Scan.DryRun {
		mode = "DRY-RUN"
		modeDesc = "SCAN ONLY, NOTHING SENT"
		color = ColorCyan
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#               📦 Slack Price Watch                      #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   MODE:     %-36s#%s\n", color, mode, ColorReset)
	fmt.Printf("%s#   TYPE:     %-36s#%s\n", color, modeDesc, ColorReset)
	fmt.Printf("%s#   VERSION:  %-36s#%s\n", color, cfg.App.Version, ColorReset)
	fmt.Printf("%s#   PROFILES: %-36d#%s\n", color, len(cfg.Profiles), ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
