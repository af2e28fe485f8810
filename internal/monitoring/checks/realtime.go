package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/campus/internal/monitoring"
)

// RealtimeObserver exposes the broker's live session count.
type RealtimeObserver interface {
	SessionCount() int
}

// Realtime is always up while the broker exists and reports its sessions.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if observer == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime broker unavailable"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d sessions", observer.SessionCount()),
		}
	})
}
