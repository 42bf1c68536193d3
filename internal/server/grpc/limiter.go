package grpc

import (
	"github.com/grpc-ecosystem/go-grpc-middleware/ratelimit"
	"golang.org/x/time/rate"
)

// tokenBucket rejects calls once the shared token bucket is empty.
type tokenBucket struct {
	l *rate.Limiter
}

// NewRateLimiter allows perSecond calls per second with bursts of burst.
// A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) ratelimit.Limiter {
	if perSecond <= 0 {
		return Unlimited()
	}
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Limit reports true when the call must be rejected.
func (t *tokenBucket) Limit() bool {
	return !t.l.Allow()
}

type unlimited struct{}

func (unlimited) Limit() bool { return false }

func Unlimited() ratelimit.Limiter { return unlimited{} }
