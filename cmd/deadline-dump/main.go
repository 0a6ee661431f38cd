package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/castlebay/deadline/internal/platform/config"
	"github.com/castlebay/deadline/internal/tools/pendingdump"
)

func main() {
	cfg, err := pendingdump.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pendingdump.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("dump pending deadlines: %v", err)
	}
}
