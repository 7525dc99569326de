package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kartoza/videosnap/internal/deps"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check for required dependencies",
	Long:  `Check if all required external programs are installed and available.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		platform := deps.DetectOS()
		required, optional := deps.CheckAll(platform, cfg.FFmpegPath)

		// Colors
		green := lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
		red := lipgloss.NewStyle().Foreground(lipgloss.Color("#E95420"))
		gray := lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))
		cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00BCD4"))
		bold := lipgloss.NewStyle().Bold(true)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s %s\n\n", bold.Render("Platform:"), cyan.Render(string(platform)))
		fmt.Fprintf(out, "%s ffmpeg %s\n\n", gray.Render("Camera capture:"), deps.CaptureFramework(platform))

		fmt.Fprintln(out, bold.Render("Required Dependencies:"))
		fmt.Fprintln(out)

		allRequiredOk := true
		for _, r := range required {
			var status string
			if r.Available {
				status = green.Render("✓")
			} else {
				status = red.Render("✗")
				allRequiredOk = false
			}
			fmt.Fprintf(out, "  %s %s\n", status, bold.Render(r.Dependency.Name))
			fmt.Fprintf(out, "    %s\n", gray.Render(r.Dependency.Description))
			if r.Available {
				fmt.Fprintf(out, "    Path: %s\n", r.Path)
			}
			fmt.Fprintln(out)
		}

		if len(optional) > 0 {
			fmt.Fprintln(out, bold.Render("Optional Dependencies:"))
			fmt.Fprintln(out)
		}
		for _, r := range optional {
			var status string
			if r.Available {
				status = green.Render("✓")
			} else {
				status = gray.Render("○")
			}
			fmt.Fprintf(out, "  %s %s\n", status, bold.Render(r.Dependency.Name))
			fmt.Fprintf(out, "    %s\n", gray.Render(r.Dependency.Description))
			if r.Available {
				fmt.Fprintf(out, "    Path: %s\n", r.Path)
			}
			fmt.Fprintln(out)
		}

		if !allRequiredOk {
			fmt.Fprintln(out, red.Render("Some required dependencies are missing."))
			fmt.Fprintln(out, "Please install them before recording.")
			return errors.New("missing required dependencies")
		}
		fmt.Fprintln(out, green.Render("All required dependencies are installed!"))
		fmt.Fprintln(out)
		return nil
	},
}
