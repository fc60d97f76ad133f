package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestConfig_ProfileFallback(t *testing.T) {
	cfg := &Config{}
	p := cfg.Profile()
	if p.FreshnessDays != 90 {
		t.Errorf("fallback FreshnessDays = %d, want 90", p.FreshnessDays)
	}
}

func TestConfig_ProfileResolvesActive(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Profiles["research"] = cfg.Profiles[DefaultProfileName]
	cfg.ActiveProfile = "research"
	p := cfg.Profiles["research"]
	p.FreshnessDays = 7
	cfg.Profiles["research"] = p

	if got := cfg.Profile().FreshnessDays; got != 7 {
		t.Errorf("FreshnessDays = %d, want 7", got)
	}
}

func TestConfig_UnknownActiveProfileRejected(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ActiveProfile = "nope"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown active profile should fail validation")
	}
}

func TestWaybackConfig_RequireCredentials(t *testing.T) {
	cfg := WaybackConfig{}
	if err := cfg.RequireCredentials(); err == nil {
		t.Fatal("empty credentials should be rejected")
	}

	cfg.AccessKey = "ak"
	if err := cfg.RequireCredentials(); err == nil {
		t.Fatal("missing secret key should be rejected")
	}

	cfg.SecretKey = "sk"
	if err := cfg.RequireCredentials(); err != nil {
		t.Fatalf("complete credentials should pass: %v", err)
	}
}

func TestWaybackConfig_NegativeDelayRejected(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Wayback.RequestDelaySeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative request delay should fail validation")
	}
}
