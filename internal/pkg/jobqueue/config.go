package jobqueue

import "github.com/JobMwaura/zintra-sub007/internal/pkg/env"

// WorkerCount reads JOBQUEUE_WORKERS, defaulting to 5.
func WorkerCount() int {
	return env.GetEnvInt("JOBQUEUE_WORKERS", 5)
}
