package app

import (
	"context"
	"log/slog"

	"edustore/pkg/queue"
)

// CleanupHandler is the queue consumer callback: it retries the object
// delete that failed inline. Returning an error requeues the task.
func (a *App) CleanupHandler(ctx context.Context, task queue.Task) error {
	if err := a.objects.Delete(ctx, task.Key); err != nil {
		slog.Warn("cleanup delete retry failed", "key", task.Key, "attempt", task.Attempts, "error", err)
		return err
	}
	slog.Info("cleanup delete succeeded", "key", task.Key, "attempt", task.Attempts)
	return nil
}
