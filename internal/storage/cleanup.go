package storage

import (
	"context"
	"time"

	"github.com/promodash/dash-front/internal/log"
)

// CleanupManager periodically removes expired session records from a backend
type CleanupManager struct {
	backend  Backend
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(backend Backend, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		backend:  backend,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Run executes the cleanup loop until Stop is called or ctx is cancelled
func (cm *CleanupManager) Run(ctx context.Context) error {
	defer close(cm.doneChan)

	log.LogInfoWithFields("cleanup", "Starting session record cleanup", map[string]any{
		"interval": cm.interval.String(),
	})

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Sweep immediately on start
	cm.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.sweep(ctx)
		case <-cm.stopChan:
			cm.sweep(ctx)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop signals the loop to finish and waits for it
func (cm *CleanupManager) Stop() {
	close(cm.stopChan)
	<-cm.doneChan
}

func (cm *CleanupManager) sweep(ctx context.Context) {
	count, err := cm.backend.DeleteExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to sweep expired session records", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Removed expired session records", map[string]any{
			"count": count,
		})
	}
}
