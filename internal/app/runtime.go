// Package app assembles the deadline daemon: stores, entity runtime,
// sweeper loop, and the health gRPC server.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/castlebay/deadline/internal/deadline"
	"github.com/castlebay/deadline/internal/deadline/dispatch"
	storesqlite "github.com/castlebay/deadline/internal/deadline/storage/sqlite"
	"github.com/castlebay/deadline/internal/deadline/sweeper"
	"github.com/castlebay/deadline/internal/entity"
	"github.com/castlebay/deadline/internal/entity/command"
	"github.com/castlebay/deadline/internal/entity/event"
	journalsqlite "github.com/castlebay/deadline/internal/journal/sqlite"
	"github.com/castlebay/deadline/internal/platform/clock"
	"github.com/castlebay/deadline/internal/telemetry"
)

// Domain carries the registries an embedding application populates before
// starting the daemon.
type Domain struct {
	Types    *entity.Types
	Commands *command.Registry
	Events   *event.Registry
	Handlers *deadline.Registry
}

// NewDomain returns a domain with empty registries.
func NewDomain() Domain {
	return Domain{
		Types:    entity.NewTypes(),
		Commands: command.NewRegistry(),
		Events:   event.NewRegistry(),
		Handlers: deadline.NewRegistry(),
	}
}

func (d Domain) validate() error {
	if d.Types == nil || d.Commands == nil || d.Events == nil || d.Handlers == nil {
		return fmt.Errorf("domain registries are required")
	}
	return nil
}

// RuntimeConfig controls daemon startup, storage paths, and sweep behavior.
type RuntimeConfig struct {
	Port          int
	JournalDBPath string
	PendingDBPath string
	SweepInterval time.Duration
	SweepBatch    int
}

const (
	defaultPort      = 8095
	defaultJournalDB = "data/journal.db"
	defaultPendingDB = "data/deadlines.db"
)

// Runtime is the assembled daemon. Embedding applications use Manager to
// schedule and Runtime.Entities to execute commands while the sweep loop
// runs.
type Runtime struct {
	Manager  *deadline.Manager
	Entities *entity.Runtime
	Sweeper  *sweeper.Sweeper
}

// Run starts daemon dependencies and the sweep loop, blocking until the
// context ends.
func Run(ctx context.Context, cfg RuntimeConfig, domain Domain) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := domain.validate(); err != nil {
		return err
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.JournalDBPath == "" {
		cfg.JournalDBPath = defaultJournalDB
	}
	if cfg.PendingDBPath == "" {
		cfg.PendingDBPath = defaultPendingDB
	}

	for _, path := range []string{cfg.JournalDBPath, cfg.PendingDBPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
	}

	journalStore, err := journalsqlite.Open(cfg.JournalDBPath, domain.Events)
	if err != nil {
		return fmt.Errorf("open journal store: %w", err)
	}
	defer func() {
		if closeErr := journalStore.Close(); closeErr != nil {
			log.Printf("close journal store: %v", closeErr)
		}
	}()

	pendingStore, err := storesqlite.Open(cfg.PendingDBPath)
	if err != nil {
		return fmt.Errorf("open pending-deadline store: %w", err)
	}
	defer func() {
		if closeErr := pendingStore.Close(); closeErr != nil {
			log.Printf("close pending-deadline store: %v", closeErr)
		}
	}()

	runtime, err := Assemble(domain, journalStore, pendingStore, cfg, nil)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on daemon port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("deadline.sweeper", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("deadline daemon listening at %v", listener.Addr())
	return runtime.Sweeper.Run(ctx)
}

// Assemble wires the entity runtime, dispatcher, sweeper, and manager on
// top of the given stores. The clock may be nil and defaults to the system
// clock.
func Assemble(domain Domain, journalStore *journalsqlite.Store, pendingStore *storesqlite.Store, cfg RuntimeConfig, clk clock.Clock) (*Runtime, error) {
	if err := domain.validate(); err != nil {
		return nil, err
	}

	entities, err := entity.NewRuntime(domain.Types, domain.Commands, journalStore, clk)
	if err != nil {
		return nil, fmt.Errorf("build entity runtime: %w", err)
	}

	reporter, err := telemetry.NewReporter(otel.Meter("deadline/sweeper"))
	if err != nil {
		return nil, fmt.Errorf("build failure reporter: %w", err)
	}

	dispatcher := dispatch.Dispatcher{Runtime: entities, Handlers: domain.Handlers}
	sweep, err := sweeper.New(pendingStore, dispatcher, reporter, clk, sweeper.Config{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("build sweeper: %w", err)
	}

	manager, err := deadline.NewManager(sweep, clk)
	if err != nil {
		return nil, fmt.Errorf("build manager: %w", err)
	}
	return &Runtime{Manager: manager, Entities: entities, Sweeper: sweep}, nil
}
