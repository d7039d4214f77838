package lending

import (
	"strings"
	"time"

	"github.com/campusshare/sharehub/internal/model"
)

// Decision is an owner's answer to a pending request.
type Decision string

// Decisions.
const (
	Approve Decision = "approve"
	Deny    Decision = "deny"
)

// ParseDecision accepts "approve" or "deny" in any case.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case Approve, Deny:
		return d, nil
	}
	return "", invalid("action", "action must be 'approve' or 'deny'")
}

// status is the request status a decision produces.
func (d Decision) status() string {
	if d == Approve {
		return model.RequestApproved
	}
	return model.RequestDenied
}

var targetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTargetReturn parses an optional target-return time. Dates and zoneless
// times are read as UTC. An empty string yields nil. The result must be
// strictly after now.
func ParseTargetReturn(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range targetLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		t = t.UTC()
		if !t.After(now.UTC()) {
			return nil, invalid("date", "return date must be in the future")
		}
		return &t, nil
	}
	return nil, invalid("date", "invalid date format, use YYYY-MM-DD or RFC 3339")
}
