// Package domain holds the user-session entity and its shape validation.
package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Shape validation errors. Raised before any store access; callers must not retry them.
var (
	ErrInvalidSessionID = errors.New("session id must be 8-128 characters without control characters")
	ErrInvalidUserID    = errors.New("user id must be 1-255 characters without control characters")
	ErrInvalidTokenHash = errors.New("session token hash must be 64 lowercase hex characters")
	ErrInvalidIPAddress = errors.New("ip address is malformed or contains hostile input")
)

// UserSession represents one authenticated client session. The session token
// itself is never held here; only its SHA-256 hash is stored and compared.
type UserSession struct {
	ID             string
	UserID         string
	TokenHash      string
	IPAddress      string
	UserAgent      string
	DeviceInfo     map[string]any
	LocationInfo   map[string]any
	IsActive       bool
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	EndedAt        *time.Time // set once; a session with EndedAt is never reactivated
}

var tokenHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// attackMarkers are substrings that mark an input as hostile rather than merely
// malformed: path traversal, script injection, SQL keywords, and code-eval calls.
// Matching is case-insensitive.
var attackMarkers = []string{
	"../",
	"..\\",
	"<script",
	"</script",
	"javascript:",
	"select ",
	"union ",
	"insert ",
	"update ",
	"delete ",
	"drop ",
	"exec(",
	"eval(",
	"';",
	"\";",
	"--",
}

// Validate checks the session's field shapes and the expiry invariant.
func (s *UserSession) Validate() error {
	if err := ValidateSessionID(s.ID); err != nil {
		return err
	}
	if err := ValidateUserID(s.UserID); err != nil {
		return err
	}
	if err := ValidateTokenHash(s.TokenHash); err != nil {
		return err
	}
	if s.IPAddress != "" {
		if _, err := SanitizeIP(s.IPAddress); err != nil {
			return err
		}
	}
	if !s.ExpiresAt.After(s.CreatedAt) {
		return errors.New("session must expire after creation")
	}
	return nil
}

// Expired reports whether the session's expiry has passed at the given instant.
func (s *UserSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Terminated reports whether the session has reached a terminal state.
// Terminal sessions stay inactive permanently.
func (s *UserSession) Terminated() bool {
	return s.EndedAt != nil
}

// ValidateSessionID checks the opaque session id shape.
func ValidateSessionID(id string) error {
	if len(id) < 8 || len(id) > 128 || hasControlChars(id) {
		return ErrInvalidSessionID
	}
	return nil
}

// ValidateUserID checks the owning account id shape.
func ValidateUserID(id string) error {
	if id == "" || len(id) > 255 || hasControlChars(id) {
		return ErrInvalidUserID
	}
	return nil
}

// ValidateTokenHash checks that the stored token hash is exactly the SHA-256
// hex form: 64 lowercase hex characters.
func ValidateTokenHash(hash string) error {
	if !tokenHashPattern.MatchString(hash) {
		return ErrInvalidTokenHash
	}
	return nil
}

// SanitizeIP strips null bytes and surrounding whitespace from a client IP and
// rejects overlong values and values carrying attack markers. It does not
// require the result to parse as an address; unparseable-but-benign input is a
// risk signal, not a validation failure.
func SanitizeIP(ip string) (string, error) {
	ip = strings.TrimSpace(strings.ReplaceAll(ip, "\x00", ""))
	if len(ip) > 45 {
		return "", ErrInvalidIPAddress
	}
	if ContainsAttackMarkers(ip) {
		return "", ErrInvalidIPAddress
	}
	return ip, nil
}

// SanitizeUserAgent strips control characters and truncates to at most 2048
// bytes, always on a rune boundary so the result stays valid UTF-8.
// It never rejects: user agents are attacker-controlled free text.
func SanitizeUserAgent(ua string) string {
	const maxLen = 2048
	var b strings.Builder
	b.Grow(len(ua))
	for _, r := range ua {
		if r != '\t' && unicode.IsControl(r) {
			continue
		}
		if b.Len()+utf8.RuneLen(r) > maxLen {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsAttackMarkers reports whether s carries any known injection or
// attack substring. Case-insensitive.
func ContainsAttackMarkers(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range attackMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
