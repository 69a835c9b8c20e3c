// Package main provides the interactive terminal client.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/threshold.quest/internal/platform/config"

	playcmd "github.com/louisbranch/threshold.quest/internal/cmd/play"
)

func main() {
	cfg, err := playcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := playcmd.Run(ctx, cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
}
