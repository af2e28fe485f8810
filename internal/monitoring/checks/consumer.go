package checks

import (
	"context"

	"github.com/charlesng35/campus/internal/monitoring"
)

// ConsumerObserver reports whether the notification consumer is subscribed.
type ConsumerObserver interface {
	Consuming() bool
}

// Consumer is degraded while no consumer is subscribed: notifications are
// still stored and queued but nobody is pushing them.
func Consumer(observer ConsumerObserver) monitoring.Check {
	return monitoring.NewCheck("notification_consumer", func(context.Context) monitoring.ProbeResult {
		if observer == nil || !observer.Consuming() {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "consumer not running"}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
