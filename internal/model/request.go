package model

import "time"

// BorrowRequest is a requester's claim on an item.
//
//	pending --approve--> approved --return--> approved+returned
//	pending --deny-----> denied
type BorrowRequest struct {
	ID             string     `json:"id" db:"id"`
	ItemID         string     `json:"item_id" db:"item_id"`
	RequesterID    string     `json:"requester_id" db:"requester_id"`
	Status         string     `json:"status" db:"status"`
	Returned       bool       `json:"returned" db:"returned"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	TargetReturnAt *time.Time `json:"target_return_at,omitempty" db:"target_return_at"`
	DecidedAt      *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty" db:"returned_at"`

	// Joined fields (not always populated).
	ItemTitle     string `json:"item_title,omitempty" db:"item_title"`
	ItemOwnerID   string `json:"item_owner_id,omitempty" db:"item_owner_id"`
	RequesterName string `json:"requester_name,omitempty" db:"requester_name"`
	OwnerName     string `json:"owner_name,omitempty" db:"owner_name"`

	// Filled in by the API for the counterpart's view, per their settings.
	RequesterContact *Contact `json:"requester_contact,omitempty" db:"-"`
	OwnerContact     *Contact `json:"owner_contact,omitempty" db:"-"`
}

// Request statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
)

// Active reports whether the request is a current borrow.
func (r *BorrowRequest) Active() bool {
	return r.Status == RequestApproved && !r.Returned
}
