package main

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
)

func TestEnsureAdminFirstRunOnly(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	password, err := ensureAdmin(ctx, database, " Admin@Campus.test ")
	if err != nil {
		t.Fatalf("ensureAdmin: %v", err)
	}
	if len(password) != 16 {
		t.Fatalf("expected 16-char password, got %q", password)
	}

	admin, err := store.GetUserByEmail(ctx, database, "admin@campus.test")
	if err != nil || admin == nil {
		t.Fatalf("admin not created: %v", err)
	}
	if admin.Role != model.RoleAdmin {
		t.Errorf("role = %s, want admin", admin.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		t.Error("stored hash does not match generated password")
	}

	again, err := ensureAdmin(ctx, database, "other@campus.test")
	if err != nil {
		t.Fatalf("second ensureAdmin: %v", err)
	}
	if again != "" {
		t.Error("admin should only be created on first run")
	}
	if n, _ := store.CountUsers(ctx, database); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}

func TestEnsureAdminRejectsBadEmail(t *testing.T) {
	database := db.NewTestDB(t)
	if _, err := ensureAdmin(context.Background(), database, "admin"); err == nil {
		t.Error("expected error for invalid admin email")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(24)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := generatePassword(24)
	if len(a) != 24 || a == b {
		t.Errorf("unexpected passwords %q %q", a, b)
	}
	if strings.ContainsAny(a, " \t\n") {
		t.Errorf("password contains whitespace: %q", a)
	}
}
