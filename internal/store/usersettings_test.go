package store

import (
	"context"
	"testing"

	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/model"
)

func TestUserSettingsDefaultsAndSave(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := mustUser(t, database, "s@cit.edu", "S")

	got, err := GetUserSettings(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUserSettings: %v", err)
	}
	if !got.ShowProfile || !got.AllowSharing || got.ShowEmail || got.ContactInformation || got.UpdatedAt != nil {
		t.Errorf("unexpected defaults: %+v", got)
	}

	got.ContactInformation = true
	got.ContactPhone = "0917"
	if err := SaveUserSettings(ctx, database, got); err != nil {
		t.Fatalf("SaveUserSettings: %v", err)
	}
	got.AllowSharing = false
	if err := SaveUserSettings(ctx, database, got); err != nil {
		t.Fatalf("SaveUserSettings again: %v", err)
	}

	saved, _ := GetUserSettings(ctx, database, user.ID)
	if !saved.ContactInformation || saved.ContactPhone != "0917" || saved.AllowSharing {
		t.Errorf("settings not saved: %+v", saved)
	}
	if saved.UpdatedAt == nil {
		t.Error("expected updated_at to be set")
	}
}

func TestListContacts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	open := mustUser(t, database, "open@cit.edu", "O")
	quiet := mustUser(t, database, "quiet@cit.edu", "Q")
	unset := mustUser(t, database, "unset@cit.edu", "U")

	SaveUserSettings(ctx, database, &model.UserSettings{UserID: open.ID, ShowEmail: true, ContactInformation: true, ContactPhone: "0917"})
	SaveUserSettings(ctx, database, &model.UserSettings{UserID: quiet.ID, ContactEmail: "hidden@x.io", ContactPhone: "0918"})

	contacts, err := ListContacts(ctx, database, []string{open.ID, quiet.ID, unset.ID})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %+v", contacts)
	}
	c := contacts[open.ID]
	if c == nil || c.Email != "open@cit.edu" || c.Phone != "0917" {
		t.Errorf("unexpected contact: %+v", c)
	}

	empty, err := ListContacts(ctx, database, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty map for no ids, got %v %v", empty, err)
	}
}
