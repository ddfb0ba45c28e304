package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{User: &User{ID: "user-1", Email: "u@example.com"}}
	u, err := p.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if u.ID != "user-1" {
		t.Errorf("expected user-1, got %s", u.ID)
	}
}

func TestStaticProviderEmpty(t *testing.T) {
	for _, p := range []*StaticProvider{{}, {User: &User{}}} {
		if _, err := p.CurrentUser(context.Background()); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	}
}

func TestContextProvider(t *testing.T) {
	var p ContextProvider

	if _, err := p.CurrentUser(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for bare context, got %v", err)
	}

	ctx := WithUser(context.Background(), &User{ID: "user-2"})
	u, err := p.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if u.ID != "user-2" {
		t.Errorf("expected user-2, got %s", u.ID)
	}
}
