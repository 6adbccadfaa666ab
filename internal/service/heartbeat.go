package service

import (
	"context"
	"log"
	"time"

	q "github.com/dhq-platform/accommodation/internal/queue"

	"github.com/dhq-platform/accommodation/internal/repository"
)

// StartQueueHeartbeat periodically publishes the current waiting count as a
// queue.updated event so live dashboards can poll the broker instead of the
// database. The heartbeat is purely advisory; the workflow itself never
// depends on it. It stops when ctx is cancelled.
func StartQueueHeartbeat(ctx context.Context, queue *repository.QueueRepo, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.CountActive(ctx)
			if err != nil {
				log.Printf("queue-heartbeat: count failed: %v", err)
				continue
			}
			_ = PublishQueueUpdated(ctx, q.QueueUpdatedEvent{
				WaitingCount: n,
				Cause:        "heartbeat",
				EmittedAt:    time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}
