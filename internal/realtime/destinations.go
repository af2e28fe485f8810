package realtime

import (
	"net"
	"net/url"
	"strings"
)

// Destinations and prefixes understood by the broker.
const (
	TopicPrefix     = "/topic/"
	UserPrefix      = "/user"
	userQueuePrefix = UserPrefix + "/queue/"

	AppBroadcast = "/app/broadcast"
	AppPing      = "/app/ping"
	TopicPong    = "/topic/pong"

	// QueueNotifications is user-relative; clients subscribe to
	// UserPrefix+QueueNotifications.
	QueueNotifications = "/queue/notifications"
	TopicNotifications = "/topic/notifications"
)

func normalizeDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if !strings.HasPrefix(dest, "/") {
		dest = "/" + dest
	}
	return strings.TrimRight(dest, "/")
}

func isTopic(dest string) bool {
	return strings.HasPrefix(dest, TopicPrefix) && len(dest) > len(TopicPrefix)
}

// isUserQueue reports whether dest addresses the caller's private queues,
// e.g. /user/queue/notifications.
func isUserQueue(dest string) bool {
	return strings.HasPrefix(dest, userQueuePrefix) && len(dest) > len(userQueuePrefix)
}

// originAllowed accepts same-host origins, loopback development origins and
// any host listed in allowed. A "*" entry allows every origin.
func originAllowed(origin, requestHost string, allowed []string) bool {
	if origin == "" {
		return true
	}
	originHost := hostWithoutPort(origin)
	if originHost == hostWithoutPort(requestHost) || isLoopback(originHost) {
		return true
	}
	for _, candidate := range allowed {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.EqualFold(hostWithoutPort(candidate), originHost) {
			return true
		}
	}
	return false
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil {
			return hostWithoutPort(parsed.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
