package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kartoza/videosnap/internal/device"
	"github.com/kartoza/videosnap/internal/logging"
	"github.com/kartoza/videosnap/internal/models"
)

// deviceLister is the part of device.Resolver the listing needs
type deviceLister interface {
	List() ([]models.CaptureDevice, error)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available video devices",
	Long:  `List all attached devices that can record video. The default device is marked with *.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.New(os.Stderr, verbose, quiet)
		return printDevices(cmd.OutOrStdout(), device.NewResolver(newBackend(cfg, logger)), jsonOutput, verbose)
	},
}

type deviceJSON struct {
	models.CaptureDevice
	Default bool `json:"default"`
}

func printDevices(w io.Writer, lister deviceLister, asJSON, details bool) error {
	devices, err := lister.List()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if asJSON {
		out := make([]deviceJSON, len(devices))
		for i, d := range devices {
			out[i] = deviceJSON{CaptureDevice: d, Default: i == 0}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(devices) == 0 {
		fmt.Fprintln(w, "No video devices found")
		return nil
	}

	noun := "devices"
	if len(devices) == 1 {
		noun = "device"
	}
	fmt.Fprintf(w, "Found %d available video %s:\n", len(devices), noun)
	for i, d := range devices {
		mark := " "
		if i == 0 {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s", mark, d.Name)
		if details {
			line += fmt.Sprintf(" (%s", d.ID)
			if d.Muxed() {
				line += ", with audio"
			}
			line += ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func init() {
	devicesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output devices as JSON")
}
