package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/m-mizutani/burrow/pkg/auth"
	"github.com/m-mizutani/burrow/pkg/server"
	agentuc "github.com/m-mizutani/burrow/pkg/usecase/agent"
	memoryuc "github.com/m-mizutani/burrow/pkg/usecase/memory"
	"github.com/m-mizutani/burrow/pkg/utils/logging"
)

// fileConfig mirrors the flag set for YAML-based deployment config.
// Explicitly passed flags win over file values.
type fileConfig struct {
	Addr         string `yaml:"addr"`
	ReplayWindow string `yaml:"replay_window"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	Repository   struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		Project  string `yaml:"project"`
		Database string `yaml:"database"`
	} `yaml:"repository"`
}

func serveCommand() *cli.Command {
	var cfg config
	var addr, configPath string
	var replayWindow time.Duration
	var debug bool

	flags := append(globalFlags(&cfg),
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("BURROW_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("BURROW_CONFIG"),
			Destination: &configPath,
		},
		&cli.DurationFlag{
			Name:        "replay-window",
			Usage:       "Freshness window for signed timestamps",
			Value:       auth.DefaultFreshnessWindow,
			Sources:     cli.EnvVars("BURROW_REPLAY_WINDOW"),
			Destination: &replayWindow,
		},
		&cli.BoolFlag{
			Name:        "debug-errors",
			Usage:       "Expose internal error detail in responses",
			Sources:     cli.EnvVars("BURROW_DEBUG_ERRORS"),
			Destination: &debug,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the agent memory HTTP service",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if configPath != "" {
				if err := applyFileConfig(c, configPath, &cfg, &addr, &replayWindow); err != nil {
					return err
				}
			}
			cfg.setupLogger()
			logger := logging.Default()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err)
				}
			}()

			verifier := auth.NewVerifier(repo, auth.WithFreshnessWindow(replayWindow))
			var opts []server.Option
			if debug {
				opts = append(opts, server.WithDebug())
			}
			srv := server.New(agentuc.New(repo), memoryuc.New(repo, verifier), opts...)

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting agent memory service",
					"addr", addr, "backend", cfg.backend, "replay_window", replayWindow)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "server terminated")
				}
				return nil
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
}

func applyFileConfig(c *cli.Command, path string, cfg *config, addr *string, replayWindow *time.Duration) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}

	if fc.Addr != "" && !c.IsSet("addr") {
		*addr = fc.Addr
	}
	if fc.ReplayWindow != "" && !c.IsSet("replay-window") {
		d, err := time.ParseDuration(fc.ReplayWindow)
		if err != nil {
			return goerr.Wrap(err, "invalid replay_window in config file", goerr.V("value", fc.ReplayWindow))
		}
		*replayWindow = d
	}
	if fc.LogLevel != "" && !c.IsSet("log-level") {
		cfg.logLevel = fc.LogLevel
	}
	if fc.LogFormat != "" && !c.IsSet("log-format") {
		cfg.logFormat = fc.LogFormat
	}
	if fc.Repository.Backend != "" && !c.IsSet("backend") {
		cfg.backend = fc.Repository.Backend
	}
	if fc.Repository.Path != "" && !c.IsSet("db-path") {
		cfg.dbPath = fc.Repository.Path
	}
	if fc.Repository.Project != "" && !c.IsSet("project") {
		cfg.project = fc.Repository.Project
	}
	if fc.Repository.Database != "" && !c.IsSet("database") {
		cfg.database = fc.Repository.Database
	}
	return nil
}
