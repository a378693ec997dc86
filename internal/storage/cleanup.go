package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/saml-front/internal/log"
)

// CleanupManager prunes tracked users not seen within the retention window
type CleanupManager struct {
	storage   Storage
	interval  time.Duration
	retention time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCleanupManager(storage Storage, interval, retention time.Duration) *CleanupManager {
	return &CleanupManager{
		storage:   storage,
		interval:  interval,
		retention: retention,
	}
}

// Start prunes once immediately, then every interval until Stop or ctx ends.
// Calling Start on a running manager is a no-op.
func (cm *CleanupManager) Start(ctx context.Context) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.done != nil {
		return
	}

	ctx, cm.cancel = context.WithCancel(ctx)
	cm.done = make(chan struct{})

	log.LogInfoWithFields("cleanup", "Starting user cleanup", map[string]any{
		"interval":  cm.interval.String(),
		"retention": cm.retention.String(),
	})

	go cm.loop(ctx, cm.done)
}

// Stop cancels the loop and waits for an in-flight prune to return
func (cm *CleanupManager) Stop() {
	cm.mu.Lock()
	cancel, done := cm.cancel, cm.done
	cm.cancel, cm.done = nil, nil
	cm.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	log.LogInfoWithFields("cleanup", "User cleanup stopped", nil)
}

func (cm *CleanupManager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		cm.Prune(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Prune removes users whose last activity predates the retention window
func (cm *CleanupManager) Prune(ctx context.Context) int {
	cutoff := time.Now().Add(-cm.retention)
	removed, err := cm.storage.PruneUsers(ctx, cutoff)
	switch {
	case err != nil:
		log.LogErrorWithFields("cleanup", "Failed to prune inactive users", map[string]any{
			"error":  err.Error(),
			"cutoff": cutoff.Format(time.RFC3339),
		})
	case removed > 0:
		log.LogInfoWithFields("cleanup", "Pruned inactive users", map[string]any{
			"count": removed,
		})
	}
	return removed
}
