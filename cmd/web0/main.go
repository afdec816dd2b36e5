// Main file for the web0 application.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wusyong/web0"
	"github.com/wusyong/web0/internal/config"
	"github.com/wusyong/web0/internal/terminal"
	"github.com/wusyong/web0/internal/ui"
)

// this is set at build time
var version string

func init() {
	if version == "" {
		version = "DEV"
	}
}

type flags struct {
	config  string
	url     string
	method  string
	body    string
	logFile string
	verbose bool
	trace   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := flags{}

	cmd := &cobra.Command{
		Use:           "web0 [url]",
		Short:         "Send an HTTP request and look at the response",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.url = args[0]
			}
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&f.method, "method", "X", "GET", "Request method (GET or POST)")
	cmd.Flags().StringVarP(&f.body, "body", "d", "", "POST body")
	cmd.Flags().Duration("timeout", 0, "Request timeout (overrides config)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "Log file to use (overrides config)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Verbosity: debug logging")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "Verbosity: trace logging")

	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}

	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}

	method, err := web0.ParseMethod(f.method)
	if err != nil {
		return err
	}

	logFile, err := setupLogging(cfg.Log, f.verbose, f.trace)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	fetcher := web0.NewFetcher(
		web0.WithClient(cfg.HTTPClient()),
		web0.WithUserAgent(cfg.UserAgent),
		web0.WithAllowedURLs(cfg.AllowedURLs),
		web0.WithDisallowedURLs(cfg.DisallowedURLs),
		web0.WithRespectRobots(cfg.RespectRobots),
		web0.WithLogger(log.Logger.With().Str("component", "fetcher").Logger()),
	)

	repainter := &ui.Repainter{}
	controller := web0.NewController(fetcher,
		web0.WithRepaint(repainter.Repaint),
		web0.WithControllerLogger(log.Logger.With().Str("component", "controller").Logger()),
	)

	textures := terminal.NewAllocator()
	state := web0.NewState(controller, web0.NewTextureSlot(textures), log.Logger)

	model := ui.New(state, textures, ui.Options{
		URL:          f.url,
		Method:       method,
		Body:         f.body,
		TickInterval: cfg.TickInterval,
		ImageSide:    cfg.RandomImageSide,
		Copy:         clipboard.WriteAll,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	repainter.Attach(program)

	log.Info().Str("version", version).Msg("Starting web0")

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}

	return nil
}

// setupLogging points the global logger at the configured log file. The
// terminal belongs to the UI, so without a file nothing is logged.
func setupLogging(cfg config.Log, verbose, trace bool) (*os.File, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	if trace {
		level = zerolog.TraceLevel
	}

	if cfg.File == "" {
		log.Logger = zerolog.New(io.Discard).Level(zerolog.Disabled)
		return nil, nil
	}

	file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}

	log.Logger = zerolog.New(file).Level(level).With().Timestamp().Str("version", version).Logger()

	return file, nil
}
