package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		Username: "alice",
		Token:    "tok",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if got.Token != "tok" {
		t.Errorf("Token = %q, want %q", got.Token, "tok")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUsername(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Username: "bob"})
	if Username(ctx) != "bob" {
		t.Errorf("Username = %q, want %q", Username(ctx), "bob")
	}
}

func TestUsernameMissing(t *testing.T) {
	if Username(context.Background()) != "" {
		t.Error("expected empty username for missing context")
	}
}
