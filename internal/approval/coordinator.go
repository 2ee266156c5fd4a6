package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Coordinator runs fan-in steps where several users may or must approve.
// Callers run it inside the request's transaction.
type Coordinator struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(repo Repository, logger *slog.Logger) *Coordinator {
	return &Coordinator{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Open creates one pending row per distinct approver.
func (c *Coordinator) Open(ctx context.Context, requestID string, step Step, policy Policy, approverIDs []string) ([]*Approval, error) {
	seen := make(map[string]struct{}, len(approverIDs))
	rows := make([]*Approval, 0, len(approverIDs))
	for _, id := range approverIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, &Approval{
			ID:         uuid.NewString(),
			RequestID:  requestID,
			Step:       string(step),
			ApproverID: id,
			Policy:     string(policy),
			Action:     string(ActionPending),
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoApprovers
	}
	if err := c.repo.Create(ctx, rows); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "approval step opened",
		"request_id", requestID, "step", step, "policy", policy, "approvers", len(rows))
	return rows, nil
}

// Reopen replaces whatever the step held with fresh pending rows. A request
// re-entering a fan-in stage after a return starts that stage over.
func (c *Coordinator) Reopen(ctx context.Context, requestID string, step Step, policy Policy, approverIDs []string) ([]*Approval, error) {
	if err := c.repo.DeleteStep(ctx, requestID, step); err != nil {
		return nil, err
	}
	return c.Open(ctx, requestID, step, policy, approverIDs)
}

// Rows returns the step's rows, empty when the step was never opened. An
// empty step returns the rows of every step.
func (c *Coordinator) Rows(ctx context.Context, requestID string, step Step) ([]*Approval, error) {
	if step == "" {
		return c.repo.ListByRequest(ctx, requestID)
	}
	return c.repo.ListByStep(ctx, requestID, step)
}

// Decide records approverID's decision. Under ANY-ONE the first approval
// locks every sibling; a rejection locks the rest of the step under either
// policy. A row that is no longer pending yields ErrAlreadyProcessed.
func (c *Coordinator) Decide(ctx context.Context, requestID string, step Step, approverID string, d Decision, signature, reason string) (Summary, error) {
	rows, err := c.repo.ListByStep(ctx, requestID, step)
	if err != nil {
		return Summary{}, err
	}
	var mine *Approval
	for _, r := range rows {
		if r.ApproverID == approverID {
			mine = r
			break
		}
	}
	if mine == nil {
		return Summary{}, ErrNotInvited
	}
	if Action(mine.Action) != ActionPending {
		return Summary{}, ErrAlreadyProcessed
	}

	policy := Policy(mine.Policy)
	at := c.now()
	ok, err := c.repo.Transition(ctx, mine.ID, ActionPending, d.action(), signature, reason, at)
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{}, ErrAlreadyProcessed
	}

	if d == DecisionReject || policy == PolicyAnyOne {
		if _, err := c.repo.LockPending(ctx, requestID, step, mine.ID, at); err != nil {
			return Summary{}, err
		}
	}

	rows, err = c.repo.ListByStep(ctx, requestID, step)
	if err != nil {
		return Summary{}, err
	}
	summary := Summarize(rows, policy)
	if policy == PolicyAnyOne && summary.Confirmed > 1 {
		// a sibling won between our read and our write
		return Summary{}, ErrAlreadyProcessed
	}

	c.logger.InfoContext(ctx, "approval decided",
		"request_id", requestID,
		"step", step,
		"approver_id", approverID,
		"decision", d,
		"confirmed", summary.Confirmed,
		"total", summary.Total)
	return summary, nil
}

// LockAll closes every pending row of the request, on rejection or cancellation.
func (c *Coordinator) LockAll(ctx context.Context, requestID string) error {
	n, err := c.repo.LockPending(ctx, requestID, "", "", c.now())
	if err != nil {
		return err
	}
	if n > 0 {
		c.logger.InfoContext(ctx, "pending approvals locked", "request_id", requestID, "count", n)
	}
	return nil
}

// Pending lists the fan-in rows waiting on approverID, for inbox queries.
func (c *Coordinator) Pending(ctx context.Context, approverID string) ([]*Approval, error) {
	return c.repo.ListPendingForApprover(ctx, approverID)
}

// Invite creates an invitation valid for ttl.
func (c *Coordinator) Invite(ctx context.Context, requestID string, kind InvitationKind, email string, ttl time.Duration) (*Invitation, error) {
	if email == "" {
		return nil, internal.NewValidationFieldError("email", "Invitation e-mail is required", internal.ErrCodeValidationFailed)
	}
	now := c.now()
	inv := &Invitation{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Kind:      string(kind),
		Email:     email,
		Token:     uuid.NewString(),
		Status:    string(InvitationPending),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := c.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Respond confirms or declines the invitation behind token. Expired
// invitations are marked expired and reported as a conflict.
func (c *Coordinator) Respond(ctx context.Context, token string, accept bool) (*Invitation, error) {
	inv, err := c.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvitationUnknown
	}
	now := c.now()
	if InvitationStatus(inv.Status) != InvitationPending {
		return nil, ErrAlreadyProcessed
	}
	if workflow.IsExpired(inv.ExpiresAt, now) {
		if _, err := c.repo.RespondInvitation(ctx, inv.ID, InvitationExpired, now); err != nil {
			return nil, err
		}
		return nil, ErrInvitationExpired
	}

	status := InvitationDeclined
	if accept {
		status = InvitationConfirmed
	}
	ok, err := c.repo.RespondInvitation(ctx, inv.ID, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}
	inv.Status = string(status)
	inv.RespondedAt = &now
	return inv, nil
}

// InvitationSummary summarizes the request's invitations of kind.
func (c *Coordinator) InvitationSummary(ctx context.Context, requestID string, kind InvitationKind) (Summary, error) {
	invs, err := c.repo.ListInvitations(ctx, requestID, kind)
	if err != nil {
		return Summary{}, err
	}
	return SummarizeInvitations(invs, c.now()), nil
}
