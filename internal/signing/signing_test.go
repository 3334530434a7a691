package signing

import (
	"fmt"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	sig, expires := s.Issue("user-1", time.Minute)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	if !s.Validate("user-1", fmt.Sprintf("%d", expires), sig) {
		t.Fatalf("expected token to validate")
	}
	if s.Validate("user-2", fmt.Sprintf("%d", expires), sig) {
		t.Fatalf("expected validation to fail for wrong user")
	}
	if s.Validate("user-1", "42", sig) {
		t.Fatalf("expected validation to fail for tampered expiry")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	expires := time.Now().Add(-time.Minute).Unix()
	sig := s.Sign("user-1", expires)
	if s.Validate("user-1", fmt.Sprintf("%d", expires), sig) {
		t.Fatalf("expected expired token to be rejected")
	}
}
