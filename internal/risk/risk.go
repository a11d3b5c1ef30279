// Package risk computes bounded integer risk scores from network and
// behavioral signals. Every scorer is a pure function of its inputs: no
// store access, no hidden state, safe to recompute on every request.
package risk

import (
	"log"
	"net/netip"
	"strings"

	"travel-planner/backend/internal/session/domain"
)

// Score bounds. IP classification tops out at 50; combined scores at 100.
const (
	MaxIPScore = 50
	MaxScore   = 100
)

// Activity risk contributions for context changes observed on validation.
const (
	ipChangeScore = 30
	uaChangeScore = 20
)

// SuspiciousActivityThreshold is the activity score above which a
// suspicious_activity event is recorded. Risk above the threshold is
// observational only; it never blocks the session.
const SuspiciousActivityThreshold = 70

// ClassifyIP scores a client network address in [0,50]. Malformed input is a
// risk signal, never an error: this function is total over all strings.
func ClassifyIP(ip, userID string) int {
	ip = strings.TrimSpace(strings.ReplaceAll(ip, "\x00", ""))

	if domain.ContainsAttackMarkers(ip) {
		log.Printf("risk: attack markers in ip input for user %q", userID)
		return MaxIPScore
	}
	if len(ip) > 45 {
		return 40
	}
	if ip == "" {
		return 10
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		// Not an address at all, but nothing overtly hostile either.
		return 30
	}
	switch {
	case addr.IsPrivate():
		return 5
	case addr.IsLoopback():
		return 15
	case addr.IsMulticast(), isReserved(addr):
		return 25
	case addr.IsLinkLocalUnicast():
		return 20
	case !addr.IsGlobalUnicast():
		return 15
	default:
		return 0
	}
}

// reservedPrefixes are address blocks that never appear as a legitimate client
// source: IPv4 240.0.0.0/4 (reserved for future use, includes broadcast) and
// the IPv6 discard and documentation blocks. netip has no predicate for these.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("100::/64"),
	netip.MustParsePrefix("2001:db8::/32"),
}

func isReserved(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// LoginRisk scores a login attempt in [0,100] from the recent failure count
// and the classified client address. Failures only contribute once there are
// more than two of them in the window.
func LoginRisk(recentFailures int, ip, userID string) int {
	score := 0
	if recentFailures > 2 {
		score = min(recentFailures*10, 40)
	}
	if ip != "" {
		score += ClassifyIP(ip, userID)
	}
	return clamp(score)
}

// ActivityRisk scores context drift between a session's stored IP/user-agent
// and the values presented on a later validation.
func ActivityRisk(ipChanged, uaChanged bool) int {
	score := 0
	if ipChanged {
		score += ipChangeScore
	}
	if uaChanged {
		score += uaChangeScore
	}
	return clamp(score)
}

// UserRisk composes an account's security posture in [0,100] from its recent
// failure count, active session count, and week's event volume.
func UserRisk(activeSessions, failedLogins, securityEvents int) int {
	score := min(failedLogins*5, 25)
	if activeSessions > 3 {
		score += (activeSessions - 3) * 5
	}
	if securityEvents > 10 {
		score += min((securityEvents-10)*2, 20)
	}
	return clamp(score)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
