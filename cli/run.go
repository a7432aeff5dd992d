package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-midiclock/config"
	"go-midiclock/debug"
	"go-midiclock/midi"
	"go-midiclock/service"
	"go-midiclock/theme"
	"go-midiclock/timeline"
	"go-midiclock/tui"
)

func runClock(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	if cfg.Logging.Debug {
		if err := debug.Enable(cfg.Logging.DebugFile); err != nil {
			return fmt.Errorf("enabling debug log: %w", err)
		}
		defer debug.Disable()
	}

	var logOut io.Writer = cmd.ErrOrStderr()
	if cfg.UI.Enabled {
		// the monitor owns the terminal
		logOut = debug.Writer()
	}
	logger := newLogger(logOut, cfg.Logging.Level)
	slog.SetDefault(logger)

	tl := newTimeline(cfg)
	transport := midi.NewPortTransport(cfg.Discovery.EnumerateTimeout)
	svc := service.New(tl, transport, service.Options{
		PollInterval: cfg.Discovery.PollInterval,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.UI.Enabled {
		return svc.Run(ctx)
	}

	th, err := loadTheme(cfg.UI.Palette)
	if err != nil {
		return err
	}
	return runWithMonitor(ctx, svc, th)
}

// runWithMonitor runs the service under the terminal monitor. Quitting the
// monitor stops the service; a failing service closes the monitor.
func runWithMonitor(ctx context.Context, svc *service.Service, th *theme.Theme) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
		cancel()
	}()

	p := tea.NewProgram(tui.NewModel(svc, th), tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := p.Run()
	cancel()

	if err := <-errCh; err != nil {
		return err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return nil
}

func newTimeline(cfg *config.Config) timeline.Timeline {
	if cfg.Timeline.Source == config.SourceOSCSync {
		return timeline.NewFollower(cfg.Timeline.OSCSync.Host, cfg.Timeline.OSCSync.Port, cfg.Tempo)
	}
	return timeline.NewSession(cfg.Tempo)
}

func loadTheme(path string) (*theme.Theme, error) {
	if path == "" {
		return theme.New(theme.Default()), nil
	}
	palette, err := theme.LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return theme.New(palette), nil
}

// newLogger returns a text logger at level (info if unrecognized)
func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	}))
}
