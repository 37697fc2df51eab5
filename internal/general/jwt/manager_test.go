package jwt

import (
	"errors"
	"testing"
	"time"

	"bus-track/internal/domain/user"
)

const testSecret = "test-secret-key-not-for-production"

func TestIssueAndValidateRoundtrip(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	token, claims, err := mgr.IssueUserToken("drv-123", user.RoleDriver)
	if err != nil {
		t.Fatalf("IssueUserToken: %v", err)
	}
	if claims.Subject != "drv-123" || claims.Role != user.RoleDriver {
		t.Fatalf("claims = %+v", claims)
	}

	_, parsed, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if parsed.Subject != "drv-123" || parsed.Role != user.RoleDriver {
		t.Fatalf("parsed claims = %+v", parsed)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := NewManager(testSecret, time.Hour).IssueUserToken("drv-123", user.RoleDriver)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewManager("different-secret", time.Hour).ParseAndValidate(token); err == nil {
		t.Fatal("token signed with another secret must fail")
	}
}

func TestRoleAllowed(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)
	_, claims, err := mgr.IssueUserToken("adm-1", user.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if err := RoleAllowed(claims, user.RoleAdmin); err != nil {
		t.Fatalf("admin must be allowed: %v", err)
	}
	if err := RoleAllowed(claims, user.RoleDriver); !errors.Is(err, ErrRoleForbidden) {
		t.Fatalf("admin on a driver-only path: got %v", err)
	}
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)
	token, _, err := mgr.IssueUserToken("drv-9", user.RoleDriver)
	if err != nil {
		t.Fatal(err)
	}

	// proper Bearer wrapping
	frame := []byte(`{"type":"auth","token":"Bearer ` + token + `"}`)
	res, err := ValidateWSAuth(frame, mgr, user.RoleDriver)
	if err != nil {
		t.Fatalf("ValidateWSAuth: %v", err)
	}
	if res.Claims.Subject != "drv-9" {
		t.Fatalf("subject = %q", res.Claims.Subject)
	}

	// bare token is accepted too
	bare := []byte(`{"type":"auth","token":"` + token + `"}`)
	if _, err := ValidateWSAuth(bare, mgr, user.RoleDriver); err != nil {
		t.Fatalf("bare token: %v", err)
	}

	// wrong message type
	if _, err := ValidateWSAuth([]byte(`{"type":"hello"}`), mgr, user.RoleDriver); !errors.Is(err, ErrBadAuthMsg) {
		t.Fatalf("wrong type: got %v", err)
	}

	// role not allowed on this channel
	if _, err := ValidateWSAuth(frame, mgr, user.RoleAdmin); !errors.Is(err, ErrRoleForbidden) {
		t.Fatalf("driver on admin channel: got %v", err)
	}

	// garbage frame
	if _, err := ValidateWSAuth([]byte(`not json`), mgr, user.RoleDriver); !errors.Is(err, ErrBadAuthMsg) {
		t.Fatalf("garbage frame: got %v", err)
	}
}
