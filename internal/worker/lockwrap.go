package worker

import (
	"context"

	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/lock"
)

// WithConversationLock serializes handler executions per conversation.
// Jobs without a conversation ID run unserialized; two jobs for the
// same conversation never execute concurrently, and waiting respects
// the job's execution context (a timeout spent queued still counts).
func WithConversationLock(locks *lock.Manager, handler Handler) Handler {
	return func(ctx context.Context, job *domain.Job, progress ProgressFunc) (*Result, error) {
		if job.ConversationID == "" {
			return handler(ctx, job, progress)
		}

		var result *Result
		err := locks.AcquireAndRun(ctx, job.ConversationID, func(ctx context.Context) error {
			var err error
			result, err = handler(ctx, job, progress)
			return err
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
