// Package limiter provides admission control for the HTTP layer.
package limiter

import "context"

// TokenLimiter is a counting limiter for in-flight executions.
type TokenLimiter struct {
	tokens chan struct{}
}

// NewTokenLimiter creates a limiter with a fixed capacity.
func NewTokenLimiter(size int) *TokenLimiter {
	if size <= 0 {
		size = 1
	}
	tokens := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		tokens <- struct{}{}
	}
	return &TokenLimiter{tokens: tokens}
}

// Acquire blocks until a token is available or ctx is canceled.
func (l *TokenLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

// TryAcquire takes a token without blocking.
func (l *TokenLimiter) TryAcquire() bool {
	select {
	case <-l.tokens:
		return true
	default:
		return false
	}
}

// Release returns a token to the limiter.
func (l *TokenLimiter) Release() {
	select {
	case l.tokens <- struct{}{}:
	default:
	}
}

// Available reports the free tokens.
func (l *TokenLimiter) Available() int {
	return len(l.tokens)
}

// Capacity reports the limiter size.
func (l *TokenLimiter) Capacity() int {
	return cap(l.tokens)
}
