package devAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/devAuth/internal/flows"
)

// ValidateToken returns the cached session for token when the signature, the
// session cache and the device registry all agree on it.
//
// Every rejection, including an unreachable cache or store, is reported as
// [ErrInvalidToken]; the precise reason goes to the debug log.
//
//	Performance: one Redis HMGET and one indexed registry read.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*Session, error) {
	if e == nil {
		return nil, ErrInvalidToken
	}

	start := time.Now()
	res := flows.RunValidate(ctx, token, e.flows.Validate)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if res.Err != nil {
		if res.Failure != flows.ValidateFailureToken {
			e.logger.Debug("devauth: token rejected", "reason", res.Failure.String(), "evicted", res.Evicted)
		}
		return nil, ErrInvalidToken
	}
	return res.Session, nil
}
