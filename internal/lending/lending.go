// Package lending enforces the borrow request lifecycle:
//
//	pending --approve(owner)--> approved --return(requester)--> approved+returned
//	pending --deny(owner)-----> denied
//
// and keeps item availability and notifications consistent with it. The
// Manager holds no per-request state; the database is the only shared
// resource, and every transition is a conditional update inside one
// transaction.
package lending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campusshare/sharehub/internal/events"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
	"github.com/jmoiron/sqlx"
)

// Notifier appends a notification for a recipient.
type Notifier interface {
	Notify(ctx context.Context, recipientID, message, typ string) error
}

// Config wires a Manager. DB is required; the rest default to no-ops and
// the wall clock.
type Config struct {
	DB       *sqlx.DB
	Notifier Notifier
	Events   events.Publisher
	Now      func() time.Time
}

// Manager runs lifecycle operations.
type Manager struct {
	db       *sqlx.DB
	notifier Notifier
	events   events.Publisher
	now      func() time.Time
}

// Response is the outcome of RespondToRequest.
type Response struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"`
	ItemID      string `json:"item_id"`
	RequesterID string `json:"requester_id"`
}

// New returns a Manager for cfg.
func New(cfg Config) *Manager {
	m := &Manager{
		db:       cfg.DB,
		notifier: cfg.Notifier,
		events:   cfg.Events,
		now:      cfg.Now,
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	if m.events == nil {
		m.events = events.Nop{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// CreateRequest files a pending request by requesterID for itemID.
// targetReturn is optional; see ParseTargetReturn.
func (m *Manager) CreateRequest(ctx context.Context, requesterID, itemID, targetReturn string) (*model.BorrowRequest, error) {
	if requesterID == "" {
		return nil, unauthenticated()
	}
	if itemID == "" {
		return nil, invalid("item_id", "item is required")
	}

	now := m.now().UTC()
	target, err := ParseTargetReturn(targetReturn, now)
	if err != nil {
		return nil, err
	}

	item, err := store.GetItem(ctx, m.db, itemID)
	if err != nil {
		return nil, unavailable(err)
	}
	if item == nil {
		return nil, notFound("item not found")
	}
	if item.OwnerID == requesterID {
		return nil, invalid("", "you can't request your own item")
	}
	if !item.Available {
		return nil, invalid("", "item is currently unavailable")
	}

	owner, err := store.GetUser(ctx, m.db, item.OwnerID)
	if err != nil {
		return nil, unavailable(err)
	}
	if owner == nil || owner.DeletedAt != nil {
		return nil, notFound("item not found")
	}
	if owner.Blocked {
		return nil, invalid("", "the owner is not accepting requests")
	}
	settings, err := store.GetUserSettings(ctx, m.db, owner.ID)
	if err != nil {
		return nil, unavailable(err)
	}
	if !settings.AllowSharing {
		return nil, invalid("", "the owner is not accepting requests")
	}

	pending, err := store.HasPendingRequest(ctx, m.db, itemID, requesterID)
	if err != nil {
		return nil, unavailable(err)
	}
	if pending {
		return nil, conflict("you already have a pending request for this item")
	}

	req, err := store.InsertRequest(ctx, m.db, itemID, requesterID, now, target)
	if store.IsUniqueViolation(err) {
		return nil, conflict("you already have a pending request for this item")
	}
	if err != nil {
		return nil, unavailable(err)
	}

	slog.Info("request created", "request", req.ID, "item", itemID, "requester", requesterID)

	m.notify(ctx, item.OwnerID, fmt.Sprintf("%s requested your item %q.", nameOr(req.RequesterName, "Someone"), item.Title), model.NotifyRequestCreated)
	m.publish(ctx, events.New(events.RequestCreated, req.ID, requesterID, now, map[string]string{
		"item_id":  itemID,
		"owner_id": item.OwnerID,
	}))

	return req, nil
}

// RespondToRequest applies the item owner's decision to a pending request.
// Approving while the item is out on another borrow fails with Conflict and
// leaves the request pending.
func (m *Manager) RespondToRequest(ctx context.Context, responderID, requestID string, decision Decision) (*Response, error) {
	if responderID == "" {
		return nil, unauthenticated()
	}
	if decision != Approve && decision != Deny {
		return nil, invalid("action", "action must be 'approve' or 'deny'")
	}
	if requestID == "" {
		return nil, invalid("request_id", "request is required")
	}

	now := m.now().UTC()
	status := decision.status()
	var req *model.BorrowRequest

	err := store.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		var err error
		req, err = store.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return notFound("request not found")
		}
		if req.ItemOwnerID != responderID {
			return denied("only the item owner can respond to this request")
		}
		if req.Status != model.RequestPending {
			return conflict("request already processed")
		}

		n, err := store.DecideRequest(ctx, tx, requestID, status, now)
		if store.IsUniqueViolation(err) {
			return conflict("item is currently lent out")
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return conflict("request already processed")
		}

		if decision == Approve {
			n, err := store.SetItemAvailable(ctx, tx, req.ItemID, true, false, now)
			if err != nil {
				return err
			}
			if n == 0 {
				return conflict("item is currently lent out")
			}
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	slog.Info("request "+status, "request", requestID, "item", req.ItemID, "owner", responderID)

	notifyType := model.NotifyRequestDenied
	evType := events.RequestDenied
	if decision == Approve {
		notifyType = model.NotifyRequestApproved
		evType = events.RequestApproved
	}
	m.notify(ctx, req.RequesterID, fmt.Sprintf("Your request for %q was %s.", req.ItemTitle, status), notifyType)
	m.publish(ctx, events.New(evType, requestID, responderID, now, map[string]string{
		"item_id":      req.ItemID,
		"requester_id": req.RequesterID,
	}))

	return &Response{
		RequestID:   requestID,
		Status:      status,
		ItemID:      req.ItemID,
		RequesterID: req.RequesterID,
	}, nil
}

// MarkReturned closes an active borrow on behalf of its requester and makes
// the item available again.
func (m *Manager) MarkReturned(ctx context.Context, requesterID, requestID string) (*model.BorrowRequest, error) {
	if requesterID == "" {
		return nil, unauthenticated()
	}
	if requestID == "" {
		return nil, invalid("request_id", "request is required")
	}

	now := m.now().UTC()
	var req *model.BorrowRequest

	err := store.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		var err error
		req, err = store.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return notFound("request not found")
		}
		if req.RequesterID != requesterID {
			return denied("only the borrower can mark this request returned")
		}
		if req.Status != model.RequestApproved {
			return invalid("", "request is not approved")
		}
		if req.Returned {
			return invalid("", "item already returned")
		}

		n, err := store.MarkRequestReturned(ctx, tx, requestID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return invalid("", "item already returned")
		}

		n, err = store.SetItemAvailable(ctx, tx, req.ItemID, false, true, now)
		if err != nil {
			return err
		}
		if n == 0 {
			slog.Warn("returned item was already available", "item", req.ItemID, "request", requestID)
		}

		req, err = store.GetRequest(ctx, tx, requestID)
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}

	slog.Info("request returned", "request", requestID, "item", req.ItemID, "requester", requesterID)

	m.notify(ctx, req.ItemOwnerID, fmt.Sprintf("%s returned %q.", nameOr(req.RequesterName, "Your borrower"), req.ItemTitle), model.NotifyRequestReturned)
	m.publish(ctx, events.New(events.RequestReturned, requestID, requesterID, now, map[string]string{
		"item_id":  req.ItemID,
		"owner_id": req.ItemOwnerID,
	}))

	return req, nil
}

// notify and publish are best-effort: the transition has already committed,
// so they also outlive a cancelled caller.
func (m *Manager) notify(ctx context.Context, recipientID, message, typ string) {
	if err := m.notifier.Notify(context.WithoutCancel(ctx), recipientID, message, typ); err != nil {
		slog.Warn("notification failed", "recipient", recipientID, "type", typ, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if err := m.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("event publish failed", "type", ev.Type, "subject", ev.Subject, "error", err)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
