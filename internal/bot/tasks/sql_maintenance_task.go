package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask vacuums and analyzes the database and reports the
// number of registered users afterwards.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		started := deps.now()

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", deps.now().Sub(started))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		users, err := deps.Store.CountUsers(ctx)
		if err != nil {
			log.WarnContext(ctx, "Failed to count users after maintenance", "error", err)
		}

		log.InfoContext(ctx, "SQL maintenance completed",
			"duration", deps.now().Sub(started).Round(time.Millisecond),
			"users", users)
		return nil
	}
}
