package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetwatch/internal/build"
	"github.com/conneroisu/assetwatch/internal/config"
	apperrors "github.com/conneroisu/assetwatch/internal/errors"
	"github.com/conneroisu/assetwatch/internal/logging"
	"github.com/conneroisu/assetwatch/internal/output"
	"github.com/conneroisu/assetwatch/internal/server"
	"github.com/conneroisu/assetwatch/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	cfg := config.Load(v)

	if errs := config.Validate(cfg); len(errs) > 0 {
		reportValidation(cmd.ErrOrStderr(), errs)
		return errs
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.OutOrStdout(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := build.NewMetrics()
	writer := output.NewWriter(cfg.Destination, logger)
	transformers := build.NewSet(build.Options{
		SassBinary:   cfg.Sass.Binary,
		IncludePaths: cfg.IncludePaths,
	}, writer, metrics, logger)

	bindings := []watcher.Binding{
		{Class: build.ClassTemplate, Pattern: cfg.Templates, Transform: transformers[build.ClassTemplate].Run},
		{Class: build.ClassStylesheet, Pattern: cfg.Styles, Transform: transformers[build.ClassStylesheet].Run},
		{Class: build.ClassScript, Pattern: cfg.Scripts, Transform: transformers[build.ClassScript].Run},
	}

	var reload *server.ReloadServer
	if cfg.Reload.Enabled {
		globs := make([]server.Glob, 0, len(bindings))
		for _, b := range bindings {
			globs = append(globs, server.Glob{Class: b.Class, Pattern: b.Pattern})
		}

		var err error
		reload, err = server.New(server.Options{
			Host:           cfg.Reload.Host,
			Port:           cfg.Reload.Port,
			Root:           cfg.Destination,
			Debounce:       cfg.Reload.Debounce,
			Globs:          globs,
			AllowedOrigins: cfg.Reload.AllowedOrigins,
		}, metrics, logger)
		if err != nil {
			return err
		}
		if err := reload.Start(ctx); err != nil {
			return fmt.Errorf("starting reload server: %w", err)
		}
	}

	dispatcher, err := watcher.NewDispatcher(bindings, writer.Remove, logger)
	if err != nil {
		shutdownReload(logger, reload)
		return err
	}
	if err := dispatcher.Start(ctx); err != nil {
		shutdownReload(logger, reload)
		return fmt.Errorf("starting watchers: %w", err)
	}

	logger.Info(ctx, "Watching for changes", "destination", cfg.Destination)

	<-ctx.Done()

	logger.Info(context.Background(), "Shutting down")
	if err := dispatcher.Stop(); err != nil {
		logger.Warn(context.Background(), err, "Failed to stop watchers")
	}
	shutdownReload(logger, reload)

	return nil
}

func shutdownReload(logger logging.Logger, reload *server.ReloadServer) {
	if reload == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := reload.Shutdown(ctx); err != nil {
		logger.Warn(ctx, err, "Reload server shutdown incomplete")
	}
}

// reportValidation prints one line per failure.
func reportValidation(w io.Writer, errs apperrors.ValidationErrors) {
	for _, err := range errs {
		fmt.Fprintln(w, color.RedString("%s", err.Message))
	}
}
