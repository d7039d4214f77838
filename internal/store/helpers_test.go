package store

import (
	"context"
	"testing"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/jmoiron/sqlx"
)

func mustUser(t *testing.T, database *sqlx.DB, email, first string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, email, "hash", model.RoleUser, Profile{FirstName: first, LastName: "Test"})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func mustItem(t *testing.T, database *sqlx.DB, ownerID, title string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, ownerID, title, "", model.CategoryBooks, model.ConditionGood)
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", title, err)
	}
	return item
}
