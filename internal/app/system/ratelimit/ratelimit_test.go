package ratelimit_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/paytrack/internal/app/system/ratelimit"
)

func TestLimiter_AllowWithinWindow(t *testing.T) {
	l := ratelimit.New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth attempt should be blocked")
	}
	// Other keys are unaffected.
	if !l.Allow("10.0.0.2") {
		t.Error("a different key should still be allowed")
	}

	if got := l.Remaining("10.0.0.1"); got != 0 {
		t.Errorf("remaining: got %d, want 0", got)
	}

	l.Reset("10.0.0.1")
	if !l.Allow("10.0.0.1") {
		t.Error("after Reset the key should be allowed again")
	}
}

func TestLoginLimiter_AccountKey(t *testing.T) {
	ll := ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)

	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	// The account key works for student IDs as well as emails, and is
	// case-insensitive.
	for i := 0; i < 2; i++ {
		if ok, _ := ll.Check(req, "2023-0001"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, reason := ll.Check(req, "2023-0001")
	if ok {
		t.Error("third attempt for the account should be blocked")
	}
	if reason == "" {
		t.Error("a blocked attempt should carry a reason")
	}

	// A different account from the same IP is fine.
	if ok, _ := ll.Check(req, "alice@example.edu"); !ok {
		t.Error("a different account should still be allowed")
	}

	ll.ResetAccount("2023-0001")
	if ok, _ := ll.Check(req, "2023-0001"); !ok {
		t.Error("after ResetAccount the account should be allowed again")
	}
}
