//go:build linux

package usb

import (
	"context"
	"sync"
	"time"

	"github.com/DoraemonOS/android-system-core/pkg"
)

// Discovery owns the periodic scan loop: each pass enumerates the bus,
// registers new matches, and sweeps devices that vanished. It runs until
// its context is cancelled.
type Discovery struct {
	scanner  *Scanner
	registry *Registry
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewDiscovery wires a scanner and registry for the given policy and
// upstream consumer.
func NewDiscovery(upstream TransportRegistry, policy Policy, opts Options) *Discovery {
	opts = opts.withDefaults()
	return &Discovery{
		scanner:  NewScanner(opts.BusRoot, policy),
		registry: NewRegistry(upstream, opts),
		interval: opts.ScanInterval,
	}
}

// Registry exposes the handle registry, chiefly for shutdown.
func (d *Discovery) Registry() *Registry { return d.registry }

// Start launches Run on its own goroutine. It fails with
// pkg.ErrAlreadyRunning if the loop is already live.
func (d *Discovery) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return pkg.ErrAlreadyRunning
	}
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			d.running = false
			close(d.done)
			d.mu.Unlock()
		}()
		d.Run(ctx)
	}()
	return nil
}

// Wait blocks until a loop launched by Start has exited. Returns
// immediately if none is running.
func (d *Discovery) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Run executes scan passes until ctx is cancelled. Each pass marks the
// still-present handles, registers newcomers, and kicks the absentees.
func (d *Discovery) Run(ctx context.Context) {
	pkg.LogInfo(pkg.ComponentScan, "usb discovery started",
		"root", d.scanner.busRoot, "interval", d.interval)

	for {
		for _, c := range d.scanner.Scan(d.registry.lookupOrMark) {
			d.registry.Register(c)
		}
		d.registry.Sweep()

		select {
		case <-ctx.Done():
			pkg.LogInfo(pkg.ComponentScan, "usb discovery stopped")
			return
		case <-time.After(d.interval):
		}
	}
}
