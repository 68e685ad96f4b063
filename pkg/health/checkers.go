package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineLimit reports unhealthy once the goroutine count passes limit.
// The count creeping upward usually means stuck handlers or workers.
func GoroutineLimit(limit int) Check {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}
