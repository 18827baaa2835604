package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StartMaintenance runs refresh (and purge when autoPurge is set) every interval
// until StopMaintenance is called or ctx is done
func (r *Registry) StartMaintenance(ctx context.Context, interval time.Duration, autoPurge bool) error {
	if interval <= 0 {
		return fmt.Errorf("maintenance interval must be positive, got %s", interval)
	}

	r.loopMu.Lock()
	defer r.loopMu.Unlock()

	if r.running {
		return nil // Already running
	}
	r.running = true
	r.done = make(chan struct{})

	go r.maintenanceLoop(ctx, interval, autoPurge, r.stopChan, r.done)
	r.logger.Info("maintenance started", "interval", interval, "auto_purge", autoPurge)
	return nil
}

// StopMaintenance stops the maintenance loop and waits for it to exit
func (r *Registry) StopMaintenance() error {
	r.loopMu.Lock()
	if !r.running {
		r.loopMu.Unlock()
		return nil
	}

	r.running = false
	close(r.stopChan)
	done := r.done

	// New channel for a potential restart
	r.stopChan = make(chan struct{})
	r.loopMu.Unlock()

	<-done
	r.logger.Info("maintenance stopped")
	return nil
}

func (r *Registry) maintenanceLoop(ctx context.Context, interval time.Duration, autoPurge bool, stopChan <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runMaintenance(ctx, autoPurge)
		case <-stopChan:
			return
		case <-ctx.Done():
			r.loopMu.Lock()
			if r.done == done {
				r.running = false
			}
			r.loopMu.Unlock()
			return
		}
	}
}

// runMaintenance performs one maintenance pass
func (r *Registry) runMaintenance(ctx context.Context, autoPurge bool) {
	if _, err := r.RefreshExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("maintenance refresh failed", "error", err)
	}

	if !autoPurge {
		return
	}

	if _, err := r.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("maintenance purge failed", "error", err)
	}
}
