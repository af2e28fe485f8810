package realtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseHeartBeat reads a "cx,cy" heart-beat header in milliseconds. Absent
// headers mean no heart-beating.
func parseHeartBeat(value string) (send, receive time.Duration, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid heart-beat %q", value)
	}
	cx, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid heart-beat %q", value)
	}
	cy, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid heart-beat %q", value)
	}
	return time.Duration(cx) * time.Millisecond, time.Duration(cy) * time.Millisecond, nil
}

// negotiate returns the interval at which one side must emit heart-beats: the
// larger of what the sender offers and what the receiver wants, or zero when
// either side declines.
func negotiate(offer, want time.Duration) time.Duration {
	if offer <= 0 || want <= 0 {
		return 0
	}
	if offer > want {
		return offer
	}
	return want
}

func formatHeartBeat(send, receive time.Duration) string {
	return strconv.FormatInt(send.Milliseconds(), 10) + "," + strconv.FormatInt(receive.Milliseconds(), 10)
}
