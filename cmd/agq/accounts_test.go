package main

import (
	"strings"
	"testing"
)

func TestAccountsCommands(t *testing.T) {
	useTempConfig(t)

	out, err := execute(t, "accounts")
	if err != nil {
		t.Fatalf("accounts error = %v", err)
	}
	if !strings.Contains(out, "No accounts") {
		t.Errorf("empty list output = %q", out)
	}

	out, err = execute(t, "accounts", "add", "--name", "Work", "--token", "1//refresh")
	if err != nil {
		t.Fatalf("accounts add error = %v", err)
	}
	id := strings.TrimSpace(strings.TrimPrefix(out, "Added account "))
	if id == "" {
		t.Fatalf("add output = %q", out)
	}

	if _, err := execute(t, "accounts", "use", id); err != nil {
		t.Fatalf("accounts use error = %v", err)
	}

	out, err = execute(t, "accounts")
	if err != nil {
		t.Fatalf("accounts error = %v", err)
	}
	if !strings.Contains(out, "* "+id+"  Work") {
		t.Errorf("list output = %q, want active Work", out)
	}

	if _, err := execute(t, "accounts", "use", "missing"); err == nil {
		t.Error("use of an unknown id should fail")
	}
	if _, err := execute(t, "accounts", "add"); err == nil {
		t.Error("add without a token should fail")
	}
}

func TestNewAccount_TokenKind(t *testing.T) {
	refresh := newAccount("", "", "1//abc")
	if refresh.RefreshToken != "1//abc" || refresh.AccessToken != "" {
		t.Errorf("refresh token stored as %+v", refresh)
	}
	access := newAccount("", "", "ya29.abc")
	if access.AccessToken != "ya29.abc" || access.RefreshToken != "" {
		t.Errorf("access token stored as %+v", access)
	}
	if refresh.ID == access.ID {
		t.Error("ids should be unique")
	}
}
