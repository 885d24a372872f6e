package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryBind gives socket creation a few chances to succeed before
// giving up, in case a previous process's socket is still being torn
// down by the kernel (transient EADDRINUSE on fast restarts).
func retryBind(op func() (*Stream, error)) (*Stream, error) {
	return backoff.Retry(context.Background(), func() (*Stream, error) {
		return op()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
		backoff.WithMaxElapsedTime(10*time.Second),
	)
}
