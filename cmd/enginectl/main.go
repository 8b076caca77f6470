// Package main provides the enginectl command line.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/enginectl/internal/platform/config"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
	"github.com/louisbranch/enginectl/internal/tools/enginectl"
)

func main() {
	cfg, err := enginectl.ParseConfig(flag.CommandLine, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		config.ExitCodef(apperrors.ExitUsage, "Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := enginectl.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.ExitCodef(apperrors.ExitCode(err), "Error: %v", err)
	}
}
