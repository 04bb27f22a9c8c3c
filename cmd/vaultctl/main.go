// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tlxue/everclaw/internal/adapter"
	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		fmt.Println(versionString())
		return 0
	}

	log := logger.NewConsoleLogger("vaultctl", os.Stderr)
	level := os.Getenv("EVERCLAW_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if err := logger.SetLevel(level); err != nil {
		log.Warn().Err(err).Msg("ignoring EVERCLAW_LOG_LEVEL")
	}

	cfg, args, err := config.GetClientConfig(os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("error getting configs")
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	client, err := adapter.NewHTTPVaultClient(*cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("create vault client")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		client:  client,
		version: versionString(),
		in:      os.Stdin,
		out:     os.Stdout,
	}
	if err = c.run(ctx, args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprint(os.Stderr, usageText)
			return 2
		}

		event := log.Error().Err(err)
		var apiErr *adapter.APIError
		if errors.As(err, &apiErr) && apiErr.Action != "" {
			event = event.Str("action", apiErr.Action)
		}
		event.Msg("command failed")
		return 1
	}
	return 0
}

func versionString() string {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}
	return fmt.Sprintf("vaultctl %s (%s, %s)", buildVersion, buildCommit, buildDate)
}
