// Package cli implements the midiclock command line.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-midiclock/config"
)

// Version is set at build time
var Version = "dev"

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree around its own viper instance
func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:   "midiclock",
		Short: "Send a 24 PPQN MIDI clock that follows a shared timeline",
		Long: `midiclock follows a shared musical timeline and sends MIDI timing clock,
start and stop messages to every MIDI output it finds. Outputs connected
while it runs are picked up automatically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClock(cmd, v)
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", configUsage())
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	flags := rootCmd.Flags()
	flags.Float64P("tempo", "t", 120, "initial tempo in BPM (local timeline)")
	flags.String("source", config.SourceLocal, "timeline source: local or oscsync")
	flags.String("host", "127.0.0.1", "oscsync master host")
	flags.Int("port", 5776, "oscsync master port")
	flags.Bool("ui", false, "show the terminal monitor")
	flags.Bool("debug", false, "write a debug log")
	_ = v.BindPFlag("tempo", flags.Lookup("tempo"))
	_ = v.BindPFlag("timeline.source", flags.Lookup("source"))
	_ = v.BindPFlag("timeline.oscsync.host", flags.Lookup("host"))
	_ = v.BindPFlag("timeline.oscsync.port", flags.Lookup("port"))
	_ = v.BindPFlag("ui.enabled", flags.Lookup("ui"))
	_ = v.BindPFlag("logging.debug", flags.Lookup("debug"))

	rootCmd.AddCommand(newPortsCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func configUsage() string {
	path, err := config.ConfigPath()
	if err != nil {
		return "config file"
	}
	return fmt.Sprintf("config file (default is %s)", path)
}

func initConfig(v *viper.Viper) error {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		if dir, err := config.ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MIDICLOCK")
	// e.g. MIDICLOCK_TIMELINE_SOURCE for timeline.source
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; a broken one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}
