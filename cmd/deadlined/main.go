// Package main starts the deadline daemon process lifecycle. Embedding
// applications populate the domain registries before Run; the stock binary
// hosts the durable sweeper with an empty domain.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/castlebay/deadline/internal/app"
	deadlinedcmd "github.com/castlebay/deadline/internal/cmd/deadlined"
)

func main() {
	cfg, err := deadlinedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DEADLINED] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := deadlinedcmd.Run(ctx, cfg, app.NewDomain()); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
