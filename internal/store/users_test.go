package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "ana@cit.edu", "hash123", model.RoleUser, Profile{FirstName: "Ana", LastName: "Reyes", Course: "BSCS"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "ana@cit.edu" {
		t.Errorf("expected email 'ana@cit.edu', got %q", user.Email)
	}
	if user.Role != model.RoleUser {
		t.Errorf("expected role 'user', got %q", user.Role)
	}
	if user.Blocked {
		t.Error("new user should not be blocked")
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.DisplayName() != "Ana Reyes" || got.Course != "BSCS" {
		t.Errorf("unexpected profile: %+v", got)
	}

	missing, err := GetUser(ctx, database, "nope")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustUser(t, database, "dup@cit.edu", "A")
	_, err := CreateUser(ctx, database, "dup@cit.edu", "hash", model.RoleUser, Profile{})
	if err == nil {
		t.Fatal("expected duplicate email to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestEmailReusableAfterDelete(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	u := mustUser(t, database, "reuse@cit.edu", "A")
	if _, err := DeleteUser(ctx, database, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "reuse@cit.edu", "hash", model.RoleUser, Profile{}); err != nil {
		t.Fatalf("CreateUser after delete: %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustUser(t, database, "alice@cit.edu", "Alice")

	user, err := GetUserByEmail(ctx, database, "alice@cit.edu")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.FirstName != "Alice" {
		t.Errorf("expected 'Alice', got %q", user.FirstName)
	}

	missing, err := GetUserByEmail(ctx, database, "bob@cit.edu")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustUser(t, database, "a@cit.edu", "Alma")
	mustUser(t, database, "b@cit.edu", "Berto")

	users, err := ListUsers(ctx, database, "")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	users, _ = ListUsers(ctx, database, "berto")
	if len(users) != 1 || users[0].Email != "b@cit.edu" {
		t.Errorf("expected search to find berto, got %+v", users)
	}

	n, err := CountUsers(ctx, database)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "deleteme@cit.edu", "D")
	DeleteUser(ctx, database, user.ID)

	users, _ := ListUsers(ctx, database, "")
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}
}

func TestUpdateUserRoleAndBlocked(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "role@cit.edu", "R")

	n, err := UpdateUserRole(ctx, database, user.ID, model.RoleAdmin)
	if err != nil || n != 1 {
		t.Fatalf("UpdateUserRole: n=%d err=%v", n, err)
	}
	n, err = SetUserBlocked(ctx, database, user.ID, true)
	if err != nil || n != 1 {
		t.Fatalf("SetUserBlocked: n=%d err=%v", n, err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Role != model.RoleAdmin || !got.Blocked {
		t.Errorf("expected blocked admin, got role=%q blocked=%v", got.Role, got.Blocked)
	}
	if got.Active() {
		t.Error("blocked user should not be active")
	}

	n, _ = SetUserBlocked(ctx, database, "missing", true)
	if n != 0 {
		t.Errorf("expected 0 rows for missing user, got %d", n)
	}
}

func TestUpdateUserProfileAndPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "pw@cit.edu", "P")
	UpdateUserPassword(ctx, database, user.ID, "newhash")
	UpdateUserProfile(ctx, database, user.ID, Profile{FirstName: "Pia", LastName: "Cruz", YearLevel: "3"})

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
	if got.DisplayName() != "Pia Cruz" || got.YearLevel != "3" {
		t.Errorf("profile not updated: %+v", got)
	}
}

func TestDeleteUserDeniesPending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner@cit.edu", "O")
	other := mustUser(t, database, "other@cit.edu", "X")
	borrower := mustUser(t, database, "b@cit.edu", "B")
	mine := mustItem(t, database, owner.ID, "Owner's drill")
	theirs := mustItem(t, database, other.ID, "Other's tent")
	at := time.Now().UTC()

	incoming, _ := InsertRequest(ctx, database, mine.ID, borrower.ID, at, nil)
	outgoing, _ := InsertRequest(ctx, database, theirs.ID, owner.ID, at, nil)
	unrelated, _ := InsertRequest(ctx, database, theirs.ID, borrower.ID, at, nil)

	denied, err := DeleteUser(ctx, database, owner.ID)
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(denied) != 1 || denied[0].ID != incoming.ID {
		t.Fatalf("expected the incoming request to be reported, got %+v", denied)
	}

	for _, tc := range []struct {
		id   string
		want string
	}{
		{incoming.ID, model.RequestDenied},
		{outgoing.ID, model.RequestDenied},
		{unrelated.ID, model.RequestPending},
	} {
		got, _ := GetRequest(ctx, database, tc.id)
		if got.Status != tc.want {
			t.Errorf("request %s: expected %s, got %s", tc.id, tc.want, got.Status)
		}
	}
}

func TestDeleteUserRefusesBorrower(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	owner := mustUser(t, database, "owner@cit.edu", "O")
	borrower := mustUser(t, database, "b@cit.edu", "B")
	item := mustItem(t, database, owner.ID, "Lent")
	at := time.Now().UTC()

	req, _ := InsertRequest(ctx, database, item.ID, borrower.ID, at, nil)
	DecideRequest(ctx, database, req.ID, model.RequestApproved, at)

	if _, err := DeleteUser(ctx, database, borrower.ID); !errors.Is(err, ErrUserBorrowing) {
		t.Fatalf("expected ErrUserBorrowing, got %v", err)
	}
	if got, _ := GetUser(ctx, database, borrower.ID); got.DeletedAt != nil {
		t.Error("borrower should not be deleted")
	}

	MarkRequestReturned(ctx, database, req.ID, at)
	if _, err := DeleteUser(ctx, database, borrower.ID); err != nil {
		t.Fatalf("DeleteUser after return: %v", err)
	}
}
