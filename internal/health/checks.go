package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/yoassist/internal/resilience"
)

// ErrNotRunning is reported by [AssistantChecker] while the conversation loop
// is not running.
var ErrNotRunning = errors.New("assistant loop is not running")

// AssistantChecker fails while running reports false and exposes the
// current conversation state as detail.
func AssistantChecker(running func() bool, state func() string) Checker {
	return Checker{
		Name: "assistant",
		Check: func(context.Context) error {
			if !running() {
				return ErrNotRunning
			}
			return nil
		},
		Detail: func() any {
			return map[string]any{
				"running": running(),
				"state":   state(),
			}
		},
	}
}

// StatusReporter exposes the breaker state of a provider chain.
type StatusReporter interface {
	Status() []resilience.ProviderStatus
}

// ProviderChecker fails when every provider in the chain has an open breaker.
// A half-open provider still counts as available.
func ProviderChecker(kind string, r StatusReporter) Checker {
	return Checker{
		Name: kind,
		Check: func(context.Context) error {
			status := r.Status()
			for _, s := range status {
				if s.State != resilience.StateOpen.String() {
					return nil
				}
			}
			return fmt.Errorf("all %d %s providers have open circuit breakers", len(status), kind)
		},
		Detail: func() any { return r.Status() },
	}
}
