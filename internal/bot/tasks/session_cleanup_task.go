package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// newSessionCleanupTask deletes questionnaire sessions abandoned for longer
// than the session TTL and multi-chat turns older than the history TTL.
func newSessionCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_cleanup")

	return func(ctx context.Context) error {
		startTime := time.Now()
		now := deps.now()

		var errs []error

		sessions, err := deps.Store.PruneSessions(ctx, now.Add(-deps.Config.Questionnaire.SessionTTL))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to prune sessions: %w", err))
		}

		messages, err := deps.Store.PruneChatMessages(ctx, now.Add(-deps.Config.Chat.HistoryTTL))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to prune chat history: %w", err))
		}

		if err := errors.Join(errs...); err != nil {
			log.ErrorContext(ctx, "Session cleanup failed", "error", err)
			return err
		}

		log.InfoContext(ctx, "Session cleanup completed",
			"sessions_deleted", sessions,
			"messages_deleted", messages,
			"duration", time.Since(startTime))
		return nil
	}
}
