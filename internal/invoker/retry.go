package invoker

import (
	"slices"
	"time"

	"github.com/shaiso/megaflow/internal/domain"
)

// shouldRetry определяет, нужно ли повторять вызов.
func shouldRetry(outcome Outcome, policy *domain.RetryPolicy) bool {
	// Нет policy — нет retry
	if policy == nil {
		return false
	}

	switch outcome.Failure {
	case FailureUnreachable:
		// Инфраструктурная ошибка — всегда retry
		return true
	case FailureRemoteRejected:
		return slices.Contains(policy.OnStatus, outcome.StatusCode)
	default:
		return false
	}
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
