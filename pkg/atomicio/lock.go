package atomicio

import (
	"context"
	"time"
)

func lockContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
