// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the CLI entry point for the oocache conversion
// server.
package main

import (
	"fmt"
	"net/http"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/sbywater/oocache/internal/cachemanager"
	"github.com/sbywater/oocache/internal/config"
	"github.com/sbywater/oocache/internal/convert/stubconverter"
	"github.com/sbywater/oocache/internal/httpapi"
	"github.com/sbywater/oocache/internal/xmlrpcapi"
)

var (
	version    = "0.1.0"
	configPath string
)

var log = logging.Logger("oocache/oocached")

func main() {
	rootCmd := &cobra.Command{
		Use:   "oocached",
		Short: "oocache conversion server",
		Long:  `oocached serves the content-addressed conversion cache over HTTP and XML-RPC.`,
	}
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("oocached version {{.Version}}\n")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and XML-RPC listeners",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "oocached.yaml", "path to the server's YAML configuration")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := cachemanager.New(cfg.CacheDir); err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}

	converter := stubconverter.StubConverter{}

	httpServer := &httpapi.Server{Converter: converter, CacheDir: cfg.CacheDir}
	httpHandler, err := httpServer.Handler()
	if err != nil {
		return fmt.Errorf("building HTTP handler: %w", err)
	}

	rpcServer := &xmlrpcapi.Server{Converter: converter, CacheDir: cfg.CacheDir}

	mux := http.NewServeMux()
	mux.Handle("/RPC2", rpcServer.Handler())
	mux.Handle("/", httpHandler)

	log.Infof("cache directory: %s", cfg.CacheDir)
	fmt.Printf("✓ oocached listening on %s (cache: %s)\n", cfg.BindAddr, cfg.CacheDir)

	server := &http.Server{Addr: cfg.BindAddr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
