package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestValidateSessionID(t *testing.T) {
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{"valid hex id", "0123456789abcdef0123456789abcdef", true},
		{"minimum length", "12345678", true},
		{"too short", "1234567", false},
		{"too long", strings.Repeat("a", 129), false},
		{"control character", "abc\x01defgh", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSessionID(tc.id)
			if tc.ok && err != nil {
				t.Errorf("ValidateSessionID(%q) = %v, want nil", tc.id, err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("ValidateSessionID(%q) = %v, want ErrInvalidSessionID", tc.id, err)
			}
		})
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("u1"); err != nil {
		t.Errorf("short user id rejected: %v", err)
	}
	if err := ValidateUserID(strings.Repeat("a", 255)); err != nil {
		t.Errorf("255-char user id rejected: %v", err)
	}
	for _, id := range []string{"", strings.Repeat("a", 256), "user\nid"} {
		if err := ValidateUserID(id); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("ValidateUserID(%q) = %v, want ErrInvalidUserID", id, err)
		}
	}
}

func TestValidateTokenHash(t *testing.T) {
	valid := strings.Repeat("0f", 32)
	if err := ValidateTokenHash(valid); err != nil {
		t.Errorf("valid hash rejected: %v", err)
	}
	for _, h := range []string{
		"",
		strings.Repeat("0f", 31) + "0", // 63 chars
		strings.Repeat("0F", 32),       // uppercase
		strings.Repeat("0g", 32),       // non-hex
	} {
		if err := ValidateTokenHash(h); !errors.Is(err, ErrInvalidTokenHash) {
			t.Errorf("ValidateTokenHash(%q) = %v, want ErrInvalidTokenHash", h, err)
		}
	}
}

func TestSanitizeIP(t *testing.T) {
	got, err := SanitizeIP("  10.0.0.1\x00 ")
	if err != nil || got != "10.0.0.1" {
		t.Errorf("SanitizeIP = %q, %v; want 10.0.0.1, nil", got, err)
	}

	// Unparseable but benign input is accepted; downstream scoring flags it.
	if got, err := SanitizeIP("not-an-address"); err != nil || got != "not-an-address" {
		t.Errorf("benign junk rejected: %q, %v", got, err)
	}

	hostile := []string{
		strings.Repeat("1", 46),
		"1.2.3.4'; DROP TABLE user_sessions; --",
		"<script>alert(1)</script>",
		"../../etc/passwd",
	}
	for _, ip := range hostile {
		if _, err := SanitizeIP(ip); !errors.Is(err, ErrInvalidIPAddress) {
			t.Errorf("SanitizeIP(%q) = %v, want ErrInvalidIPAddress", ip, err)
		}
	}
}

func TestSanitizeUserAgent(t *testing.T) {
	if got := SanitizeUserAgent("Mozilla/5.0\x00\x01 (X11)\n"); got != "Mozilla/5.0 (X11)" {
		t.Errorf("SanitizeUserAgent = %q, want control characters stripped", got)
	}
	if got := SanitizeUserAgent("a\tb"); got != "a\tb" {
		t.Errorf("tab stripped: %q", got)
	}
	if got := SanitizeUserAgent(strings.Repeat("x", 3000)); len(got) != 2048 {
		t.Errorf("len = %d, want truncation to 2048", len(got))
	}
	// Truncation lands on a rune boundary: a multi-byte rune straddling the
	// limit is dropped whole, never split into invalid UTF-8.
	straddling := SanitizeUserAgent(strings.Repeat("a", 2047) + "ééé")
	if !utf8.ValidString(straddling) {
		t.Errorf("truncated agent is invalid UTF-8: %q", straddling[len(straddling)-4:])
	}
	if len(straddling) > 2048 {
		t.Errorf("len = %d, want <= 2048", len(straddling))
	}
	allMultibyte := SanitizeUserAgent(strings.Repeat("é", 2000))
	if !utf8.ValidString(allMultibyte) || len(allMultibyte) > 2048 {
		t.Errorf("multibyte agent: valid=%v len=%d", utf8.ValidString(allMultibyte), len(allMultibyte))
	}
	// Never rejects, even hostile content. The audit trail keeps it verbatim.
	if got := SanitizeUserAgent("<script>alert(1)</script>"); got != "<script>alert(1)</script>" {
		t.Errorf("hostile agent altered: %q", got)
	}
}

func TestUserSessionValidate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	valid := UserSession{
		ID:             "0123456789abcdef",
		UserID:         "u1",
		TokenHash:      strings.Repeat("ab", 32),
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		LastActivityAt: now,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid session rejected: %v", err)
	}

	expiresBefore := valid
	expiresBefore.ExpiresAt = now.Add(-time.Hour)
	if err := expiresBefore.Validate(); err == nil {
		t.Error("session expiring before creation accepted")
	}
	expiresEqual := valid
	expiresEqual.ExpiresAt = now
	if err := expiresEqual.Validate(); err == nil {
		t.Error("session expiring at creation accepted")
	}
}

func TestExpiredBoundary(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := UserSession{ExpiresAt: now}
	if !s.Expired(now) {
		t.Error("session at its exact expiry instant should be expired")
	}
	if s.Expired(now.Add(-time.Nanosecond)) {
		t.Error("session just before expiry should not be expired")
	}
}

func TestTerminated(t *testing.T) {
	s := UserSession{}
	if s.Terminated() {
		t.Error("fresh session reported terminated")
	}
	ended := time.Now().UTC()
	s.EndedAt = &ended
	if !s.Terminated() {
		t.Error("ended session not reported terminated")
	}
}
