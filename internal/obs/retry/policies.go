package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

func DefaultKafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "kafka_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// Permanent marks an error as not worth retrying. Transports wrap
// rejections (bad address, 4xx response) with it so delivery fails fast
// and the channel can be disabled.
var Permanent = errors.New("permanent")

func IsPermanent(err error) bool { return errors.Is(err, Permanent) }

func DeliveryPolicy(name string, log *zap.Logger) Policy {
	return Policy{
		Name:     name,
		Attempts: 3,
		Backoff:  ExpoJitter{Base: time.Second, Max: 15 * time.Second, Jitter: 0.3},
		Retryable: func(err error) bool {
			return err != nil && !IsPermanent(err)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("delivery retry", zap.String("transport", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("delivery failed", zap.String("transport", name), zap.Error(err))
			}
		},
	}
}
