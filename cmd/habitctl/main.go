package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/habits/internal/bootstrap"
	"github.com/fastygo/habits/internal/config"
	"github.com/fastygo/habits/internal/keyring"
	"github.com/fastygo/habits/internal/services/lifecycle"
	"github.com/fastygo/habits/pkg/logger"
	"github.com/fastygo/habits/usecase"
	habitUC "github.com/fastygo/habits/usecase/habit"
)

var verbose bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "habitctl",
	Short:         "Track habits and streaks from the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// client is one habitctl invocation's view of the backend.
type client struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *lifecycle.Manager
	backend *bootstrap.Backend
}

func newClient(ctx context.Context) (*client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	zapLogger, err := logger.New(logger.Config{Level: level, Encoding: "console", File: cfg.Logger.File, Stderr: true})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	backend, err := bootstrap.Open(ctx, cfg, manager, zapLogger)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		return nil, err
	}

	return &client{cfg: cfg, logger: zapLogger, manager: manager, backend: backend}, nil
}

// Close releases every connection.
func (c *client) Close() {
	if err := c.manager.Shutdown(context.Background()); err != nil {
		c.logger.Warn("shutdown", zap.Error(err))
	}
	_ = c.logger.Sync()
}

// store returns a HabitStore acting as the session saved by login.
func (c *client) store(opts ...habitUC.Option) (*habitUC.Store, *keyring.Credentials, error) {
	creds, err := keyring.Load(c.cfg.CLI.KeyringService)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil, errors.New("not signed in, run `habitctl login <user-id>` first")
		}
		return nil, nil, err
	}
	opts = append([]habitUC.Option{
		habitUC.WithClock(usecase.SystemClock{}),
		habitUC.WithSnapshotter(c.backend.Cache),
	}, opts...)
	return habitUC.New(c.backend.Docs, c.backend.Auth.ForSession(creds.SessionID), c.logger, opts...), creds, nil
}

// withClient runs fn with a connected client and closes it afterwards.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
