package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner@cit.edu", "Olga")

	item, err := CreateItem(ctx, database, owner.ID, "Calculus textbook", "Stewart 8th ed.", model.CategoryBooks, model.ConditionGood)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Title != "Calculus textbook" {
		t.Errorf("expected title 'Calculus textbook', got %q", item.Title)
	}
	if !item.Available {
		t.Error("new items should be available")
	}
	if item.HasImage {
		t.Error("new items should have no image")
	}
	if item.OwnerName != "Olga Test" {
		t.Errorf("expected owner name 'Olga Test', got %q", item.OwnerName)
	}

	missing, err := GetItem(ctx, database, "nope")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing item")
	}
}

func TestListItemsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice@cit.edu", "Alice")
	bob := mustUser(t, database, "bob@cit.edu", "Bob")

	mustItem(t, database, alice.ID, "Graphing calculator")
	drill, _ := CreateItem(ctx, database, alice.ID, "Power drill", "18V cordless", model.CategoryTools, model.ConditionFair)
	mustItem(t, database, bob.ID, "Physics notes 100%")

	SetItemAvailable(ctx, database, drill.ID, true, false, time.Now().UTC())

	all, _ := ListItems(ctx, database, ItemFilter{})
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}

	browse, _ := ListItems(ctx, database, ItemFilter{ExcludeOwnerID: bob.ID, AvailableOnly: true})
	if len(browse) != 1 || browse[0].Title != "Graphing calculator" {
		t.Errorf("expected only the calculator, got %+v", browse)
	}

	mine, _ := ListItems(ctx, database, ItemFilter{OwnerID: alice.ID})
	if len(mine) != 2 {
		t.Errorf("expected 2 items for alice, got %d", len(mine))
	}

	tools, _ := ListItems(ctx, database, ItemFilter{Category: model.CategoryTools})
	if len(tools) != 1 || tools[0].ID != drill.ID {
		t.Errorf("expected drill for tools, got %+v", tools)
	}

	search, _ := ListItems(ctx, database, ItemFilter{Search: "CORDLESS"})
	if len(search) != 1 || search[0].ID != drill.ID {
		t.Errorf("expected description search to find drill, got %+v", search)
	}

	// LIKE wildcards in the search term are literal.
	pct, _ := ListItems(ctx, database, ItemFilter{Search: "100%"})
	if len(pct) != 1 {
		t.Errorf("expected 1 match for literal '100%%', got %d", len(pct))
	}
	none, _ := ListItems(ctx, database, ItemFilter{Search: "%"})
	if len(none) != 1 {
		t.Errorf("expected '%%' to match only the literal percent, got %d", len(none))
	}
}

func TestSetItemAvailableConditional(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "o@cit.edu", "O")
	item := mustItem(t, database, owner.ID, "Tent")
	at := time.Now().UTC()

	n, err := SetItemAvailable(ctx, database, item.ID, true, false, at)
	if err != nil || n != 1 {
		t.Fatalf("first flip: n=%d err=%v", n, err)
	}

	// Second flip from the same expected state loses.
	n, err = SetItemAvailable(ctx, database, item.ID, true, false, at)
	if err != nil || n != 0 {
		t.Fatalf("second flip: n=%d err=%v", n, err)
	}
}

func TestUpdateItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "o@cit.edu", "O")
	item := mustItem(t, database, owner.ID, "Old title")

	if err := UpdateItem(ctx, database, item.ID, "New title", "desc", model.CategorySports, model.ConditionNew); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	got, _ := GetItem(ctx, database, item.ID)
	if got.Title != "New title" || got.Category != model.CategorySports || got.Condition != model.ConditionNew {
		t.Errorf("item not updated: %+v", got)
	}
	if !got.Available {
		t.Error("UpdateItem must not touch availability")
	}
}

func TestDeleteItemDeniesPending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "o@cit.edu", "O")
	borrower := mustUser(t, database, "b@cit.edu", "B")
	item := mustItem(t, database, owner.ID, "Delete Me")

	req, _ := InsertRequest(ctx, database, item.ID, borrower.ID, time.Now().UTC(), nil)

	denied, err := DeleteItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if len(denied) != 1 || denied[0].ID != req.ID {
		t.Errorf("expected pending request to be denied, got %+v", denied)
	}

	items, _ := ListItems(ctx, database, ItemFilter{})
	if len(items) != 0 {
		t.Errorf("expected 0 items after soft delete, got %d", len(items))
	}

	got, _ := GetRequest(ctx, database, req.ID)
	if got.Status != model.RequestDenied || got.DecidedAt == nil {
		t.Errorf("expected denied request, got %+v", got)
	}
}

func TestDeleteItemRefusesLent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "o@cit.edu", "O")
	borrower := mustUser(t, database, "b@cit.edu", "B")
	item := mustItem(t, database, owner.ID, "Lent")
	at := time.Now().UTC()

	req, _ := InsertRequest(ctx, database, item.ID, borrower.ID, at, nil)
	DecideRequest(ctx, database, req.ID, model.RequestApproved, at)
	SetItemAvailable(ctx, database, item.ID, true, false, at)

	_, err := DeleteItem(ctx, database, item.ID)
	if !errors.Is(err, ErrItemLent) {
		t.Fatalf("expected ErrItemLent, got %v", err)
	}
	if got, _ := GetItem(ctx, database, item.ID); got == nil {
		t.Error("lent item should not be deleted")
	}
}

func TestItemImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "o@cit.edu", "O")
	item := mustItem(t, database, owner.ID, "Camera")

	data, _, err := GetItemImage(ctx, database, item.ID, false)
	if err != nil {
		t.Fatalf("GetItemImage: %v", err)
	}
	if data != nil {
		t.Errorf("expected no image, got %d bytes", len(data))
	}

	if err := SetItemImage(ctx, database, item.ID, []byte("full"), []byte("thumb"), "image/png"); err != nil {
		t.Fatalf("SetItemImage: %v", err)
	}

	full, mime, _ := GetItemImage(ctx, database, item.ID, false)
	if string(full) != "full" || mime != "image/png" {
		t.Errorf("unexpected image %q %q", full, mime)
	}
	thumb, _, _ := GetItemImage(ctx, database, item.ID, true)
	if string(thumb) != "thumb" {
		t.Errorf("unexpected thumbnail %q", thumb)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if !got.HasImage {
		t.Error("expected HasImage after upload")
	}
}

func TestListItemsBorrowable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice@cit.edu", "Alice")
	blocked := mustUser(t, database, "blocked@cit.edu", "Bea")
	gone := mustUser(t, database, "gone@cit.edu", "Gus")
	private := mustUser(t, database, "private@cit.edu", "Pia")
	viewer := mustUser(t, database, "viewer@cit.edu", "Vic")

	mustItem(t, database, alice.ID, "Calculator")
	mustItem(t, database, blocked.ID, "Tripod")
	mustItem(t, database, gone.ID, "Easel")
	mustItem(t, database, private.ID, "Lab coat")

	SetUserBlocked(ctx, database, blocked.ID, true)
	DeleteUser(ctx, database, gone.ID)
	settings := model.DefaultSettings(private.ID)
	settings.AllowSharing = false
	if err := SaveUserSettings(ctx, database, settings); err != nil {
		t.Fatalf("SaveUserSettings: %v", err)
	}

	browse, err := ListItems(ctx, database, ItemFilter{ExcludeOwnerID: viewer.ID, AvailableOnly: true, Borrowable: true})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(browse) != 1 || browse[0].Title != "Calculator" {
		t.Errorf("expected only the calculator, got %+v", browse)
	}

	all, _ := ListItems(ctx, database, ItemFilter{})
	if len(all) != 4 {
		t.Errorf("expected unfiltered list to keep all 4 items, got %d", len(all))
	}
}

func TestDeleteItemMissing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "o@cit.edu", "O")
	item := mustItem(t, database, owner.ID, "Twice")

	if _, err := DeleteItem(ctx, database, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := DeleteItem(ctx, database, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound on second delete, got %v", err)
	}
	if _, err := DeleteItem(ctx, database, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound for unknown item, got %v", err)
	}
}
