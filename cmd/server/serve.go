package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/youruser/itemart/internal/api"
	"github.com/youruser/itemart/internal/background"
	"github.com/youruser/itemart/internal/config"
	imagepkg "github.com/youruser/itemart/internal/image"
	"github.com/youruser/itemart/internal/items"
	"github.com/youruser/itemart/internal/locate"
	"github.com/youruser/itemart/internal/util"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the item image HTTP server",
		Example: `  # Start with defaults (main.json, ./background, port 8080)
  itemart serve

  # Use a config file and a custom port
  itemart serve --config itemart.yaml --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("ITEMART_CONFIG")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			handler, err := buildHandler(cfg)
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           api.NewEngine(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Item image server listening", "addr", addr, "url", "http://localhost"+addr,
					"strategy", cfg.Locator.Strategy, "policy", cfg.Compose.Policy)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (env ITEMART_CONFIG)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config and PORT)")

	return cmd
}

// buildHandler wires the catalog, backgrounds, locator, fetcher and
// compositor described by cfg.
func buildHandler(cfg config.Config) (*api.Handler, error) {
	policy, err := imagepkg.ParsePolicy(cfg.Compose.Policy)
	if err != nil {
		return nil, err
	}
	loc, err := locate.New(cfg.Locator, util.NewHTTPClient(cfg.Locator.Shard.ProbeTimeout))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Backgrounds.Dir); err != nil {
		slog.Warn("Background directory not readable", "dir", cfg.Backgrounds.Dir, "err", err)
	}

	return &api.Handler{
		Catalog: items.Open(cfg.Catalog.Path),
		Backgrounds: background.NewResolver(os.DirFS(cfg.Backgrounds.Dir), background.Options{
			DefaultName: cfg.Backgrounds.Default,
			Cache:       cfg.Backgrounds.Cache,
		}),
		Locator:        loc,
		Fetcher:        imagepkg.NewFetcher(util.NewHTTPClient(cfg.Fetch.Timeout), cfg.Fetch.MaxBytes),
		Compositor:     imagepkg.Compositor{Policy: policy, UpscaleSmall: cfg.Compose.UpscaleSmall},
		SecretKey:      cfg.Server.SecretKey,
		CompositePath:  cfg.Server.CompositePath,
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, nil
}
