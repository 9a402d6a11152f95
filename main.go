package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"airsync/internal/airtable"
	"airsync/internal/callback"
	"airsync/internal/config"
	"airsync/internal/retry"
	"airsync/internal/sheets"
	"airsync/internal/statuscache"
	"airsync/internal/syncer"
	"airsync/internal/wpimport"
)

func main() {
	setupLogging()

	app := &cli.Command{
		Name:  "airsync",
		Usage: "Mirror an Airtable table into Google Sheets and drive WP All Import runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.yaml",
			},
		},
		Commands: []*cli.Command{
			syncCommand(),
			serveCommand(),
			triggerCommand(),
			statusCommand(),
			cancelCommand(),
			clearStatusCommand(),
			clearCacheCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	applyLogLevel(cfg.LogLevel)
	return cfg, nil
}

func buildSyncer(ctx context.Context, cfg *config.Config) (*syncer.Syncer, error) {
	fetcher := airtable.NewClient(cfg.Airtable.Token, cfg.Airtable.PageSize, cfg.Airtable.InterPageDelay, retry.Config{
		MaxRetries: cfg.Airtable.Retry.MaxRetries,
		BaseDelay:  cfg.Airtable.Retry.BaseDelay,
		MaxDelay:   cfg.Airtable.Retry.MaxDelay,
		Timeout:    cfg.Airtable.Retry.Timeout,
	})

	sheetsClient, err := sheets.NewClient(ctx, cfg.Sheet.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	tab := sheets.NewTab(sheetsClient, cfg.Sheet.SpreadsheetID, cfg.Sheet.Name)

	return syncer.New(
		fetcher, tab,
		cfg.Airtable.BaseID, cfg.Airtable.TableID, cfg.Airtable.View,
		cfg.Airtable.Fields, cfg.Airtable.TimestampField,
		cfg.Location(),
	), nil
}

func buildCoordinator(cfg *config.Config) (*wpimport.Coordinator, *statuscache.Store, error) {
	store, err := statuscache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	remote := wpimport.NewClient(cfg.WP.BaseURL, cfg.WP.Key, cfg.WP.Timeout)
	return wpimport.NewCoordinator(store, remote, cfg.Cache.TTL), store, nil
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync pass and exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := buildSyncer(ctx, cfg)
			if err != nil {
				return err
			}
			result := s.Run(ctx)
			return result.Err
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Sync on an interval and serve the import completion callback",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildSyncer(ctx, cfg)
	if err != nil {
		return err
	}
	coordinator, store, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sheetsClient, err := sheets.NewClient(ctx, cfg.Sheet.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}
	logTab := sheets.NewTab(sheetsClient, cfg.Sheet.SpreadsheetID, cfg.Sheet.ResultsLogSheet)
	results := callback.NewResultsLog(logTab, cfg.Location())
	handler := callback.NewHandler(cfg.Callback.Secret, cfg.WP.ImportID, coordinator, results)

	mux := http.NewServeMux()
	mux.Handle("/callback", handler)
	server := &http.Server{Addr: cfg.Callback.Addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Callback.Addr).Msg("Callback server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	go func() {
		log.Info().Dur("interval", cfg.Sync.Interval).Msg("Starting sync loop, running immediately")
		s.Run(ctx)

		ticker := time.NewTicker(cfg.Sync.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func importIDFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "import-id",
		Usage: "WP All Import numerical ID (defaults to the configured one)",
	}
}

func resolveImportID(cmd *cli.Command, cfg *config.Config) (string, error) {
	id := cmd.String("import-id")
	if id == "" {
		id = cfg.WP.ImportID
	}
	if id == "" {
		return "", errors.New("no import id given and none configured")
	}
	return id, nil
}

func triggerCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Trigger a WordPress import run",
		Flags: []cli.Flag{importIDFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coordinator, store, err := buildCoordinator(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveImportID(cmd, cfg)
			if err != nil {
				return err
			}

			status, err := coordinator.Trigger(ctx, id)
			if errors.Is(err, wpimport.ErrAlreadyRunning) {
				fmt.Printf("Import %s is already pending (run %s), not triggering again.\n", id, status.RunID)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Printf("Import %s triggered: %s\n", id, status.Message)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the cached status of an import",
		Flags: []cli.Flag{importIDFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coordinator, store, err := buildCoordinator(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveImportID(cmd, cfg)
			if err != nil {
				return err
			}

			status := coordinator.Read(id)
			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Ask WordPress to cancel a running import",
		Flags: []cli.Flag{importIDFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coordinator, store, err := buildCoordinator(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveImportID(cmd, cfg)
			if err != nil {
				return err
			}
			if err := coordinator.Cancel(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Cancellation request sent for import %s, status cleared.\n", id)
			return nil
		},
	}
}

func clearStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear-status",
		Usage: "Drop the cached status of an import (recovery for stuck pending entries)",
		Flags: []cli.Flag{importIDFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coordinator, store, err := buildCoordinator(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveImportID(cmd, cfg)
			if err != nil {
				return err
			}
			if err := coordinator.Clear(id); err != nil {
				return err
			}
			fmt.Printf("Status cleared for import %s.\n", id)
			return nil
		},
	}
}

func clearCacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear-cache",
		Usage: "Flush the WordPress site page cache",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			coordinator, store, err := buildCoordinator(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			message, err := coordinator.ClearRemoteCache(ctx)
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
}
