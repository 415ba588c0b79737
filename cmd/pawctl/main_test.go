package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/matheus3301/pawchat/internal/config"
	"github.com/matheus3301/pawchat/internal/profile"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestInitWritesIdentity(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())

	if err := run(t, "--profile", "work", "init", "alice@example.com", "Alice", "Doe"); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(profile.ConfigPath("work"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Identity.Email != "alice@example.com" || cfg.Identity.Name != "Alice Doe" {
		t.Errorf("identity = %+v", cfg.Identity)
	}
	// Defaults are written alongside the identity.
	if cfg.Chat.PageSize != config.Default().Chat.PageSize {
		t.Errorf("page_size = %d", cfg.Chat.PageSize)
	}
}

func TestInviteRequiresIdentity(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())

	err := run(t, "invite")
	if !errors.Is(err, config.ErrNoIdentity) {
		t.Fatalf("invite error = %v, want ErrNoIdentity", err)
	}
	if !strings.Contains(err.Error(), "pawctl --profile main init") {
		t.Errorf("error %q lacks the init hint", err)
	}
}

func TestArgValidation(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())

	tests := [][]string{
		{"send", "conv-only"},
		{"history"},
		{"watch", "a", "b"},
		{"init"},
		{"status", "extra"},
	}
	for _, args := range tests {
		if err := run(t, args...); err == nil {
			t.Errorf("%v: expected an argument error", args)
		}
	}
}

func TestInvalidProfileName(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())

	if err := run(t, "--profile", "Bad Name", "status"); err == nil {
		t.Fatal("expected invalid profile error")
	}
}
