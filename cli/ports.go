package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-midiclock/config"
	"go-midiclock/midi"
)

func newPortsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the MIDI outputs the clock would send to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			return listPorts(cmd, midi.NewPortTransport(cfg.Discovery.EnumerateTimeout))
		},
	}
}

func listPorts(cmd *cobra.Command, transport midi.Transport) error {
	names, err := transport.Ports()
	if err != nil {
		return fmt.Errorf("listing outputs: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== MIDI Output Ports ===")
	if len(names) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for i, name := range names {
		fmt.Fprintf(out, "  %d: %s\n", i, name)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "midiclock %s\n", Version)
		},
	}
}
