// Package server provides the WebSocket endpoint for the room protocol
// and the application lifecycle: ordered startup, one-shot background
// tasks, and graceful shutdown on signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks until the service
// stops or fails; Stop asks it to wind down.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into the Service
// interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle manages services and one-shot startup tasks. Services are
// started in the order added and stopped in reverse order; tasks run
// once in the background and may fail without bringing the process
// down.
type Lifecycle struct {
	logger *zap.Logger

	mu       sync.Mutex
	services []namedService
	tasks    []namedTask
}

type namedService struct {
	name    string
	service Service
}

type namedTask struct {
	name string
	run  func(context.Context) error
}

// NewLifecycle creates a Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service. Services start in the order added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// AddTask registers a one-shot background task, such as the directory
// registration handshake. A task error is logged and does not stop the
// other services.
//
// Precondition: name must be non-empty; run must be non-nil.
func (l *Lifecycle) AddTask(name string, run func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, namedTask{name: name, run: run})
}

// Run starts every service and task and blocks until SIGINT/SIGTERM, a
// service failure, or context cancellation, then stops services in
// reverse order.
//
// Postcondition: All services are stopped when this method returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(l.services))
	for _, ns := range l.services {
		ns := ns
		go func() {
			l.logger.Info("starting service", zap.String("service", ns.name))
			if err := ns.service.Start(); err != nil {
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
				cancel()
			}
		}()
	}

	for _, nt := range l.tasks {
		nt := nt
		go func() {
			taskStart := time.Now()
			if err := nt.run(ctx); err != nil {
				l.logger.Warn("startup task failed",
					zap.String("task", nt.name),
					zap.Error(err),
					zap.Duration("elapsed", time.Since(taskStart)),
				)
				return
			}
			l.logger.Info("startup task complete",
				zap.String("task", nt.name),
				zap.Duration("elapsed", time.Since(taskStart)),
			)
		}()
	}

	l.logger.Info("all services started",
		zap.Int("services", len(l.services)),
		zap.Int("tasks", len(l.tasks)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		l.logger.Error("service error, shutting down", zap.Error(err))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.shutdown()

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return nil
}

func (l *Lifecycle) shutdown() {
	for i := len(l.services) - 1; i >= 0; i-- {
		ns := l.services[i]
		l.logger.Info("stopping service", zap.String("service", ns.name))
		ns.service.Stop()
	}
}
