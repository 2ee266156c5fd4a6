package approval

import (
	"strings"
	"time"

	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Summarize counts rows under policy. Locked rows are neither pending nor
// declined; they only occur once an ANY-ONE step is already satisfied.
func Summarize(rows []*Approval, policy Policy) Summary {
	var s Summary
	s.Total = len(rows)
	for _, r := range rows {
		switch Action(r.Action) {
		case ActionApprove:
			s.Confirmed++
		case ActionReject:
			s.Declined++
		case ActionPending:
			s.Pending++
		}
	}
	switch policy {
	case PolicyAnyOne:
		s.AllConfirmed = s.Confirmed >= 1 && s.Declined == 0
	default:
		s.AllConfirmed = s.Total > 0 && s.Confirmed == s.Total
	}
	return s
}

// SummarizeInvitations treats pending invitations past their expiry as
// declined. Only the latest invitation to an address counts, so inviting
// again after a decline or a lapse can still settle the set.
func SummarizeInvitations(invs []*Invitation, now time.Time) Summary {
	invs = latestPerEmail(invs)
	var s Summary
	s.Total = len(invs)
	for _, inv := range invs {
		switch InvitationStatus(inv.Status) {
		case InvitationConfirmed:
			s.Confirmed++
		case InvitationDeclined, InvitationExpired:
			s.Declined++
		default:
			if workflow.IsExpired(inv.ExpiresAt, now) {
				s.Declined++
			} else {
				s.Pending++
			}
		}
	}
	s.AllConfirmed = s.Total > 0 && s.Confirmed == s.Total
	return s
}

func latestPerEmail(invs []*Invitation) []*Invitation {
	out := make([]*Invitation, 0, len(invs))
	at := make(map[string]int, len(invs))
	for _, inv := range invs {
		key := strings.ToLower(strings.TrimSpace(inv.Email))
		if key == "" {
			out = append(out, inv)
			continue
		}
		i, seen := at[key]
		if !seen {
			at[key] = len(out)
			out = append(out, inv)
			continue
		}
		if !inv.CreatedAt.Before(out[i].CreatedAt) {
			out[i] = inv
		}
	}
	return out
}
