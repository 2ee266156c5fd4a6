package travelrequest

import (
	"context"
	"fmt"
	"strings"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Reject closes the request at its current stage. The reason is checked
// once the actor is known to hold the stage, and before anything is written.
func (s *Service) Reject(ctx context.Context, id string, actor *rbac.Actor, dto RejectDTO) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	reason := strings.TrimSpace(dto.Reason)

	var (
		req      *Request
		previous string
		role     workflow.Role
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.lock(txCtx, id)
		if err != nil {
			return err
		}
		previous = req.Status
		version := req.Version
		status, level := workflow.Normalize(workflow.Status(req.Status), workflow.ExecLevel(req.ExecLevel))

		if status.IsTerminal() {
			return ErrTerminal
		}
		if !status.IsApprovalStage() {
			return ErrInvalidStatus
		}
		target, err := s.target(txCtx, req, status, level)
		if err != nil {
			return err
		}
		if !rbac.CanAct(actor, target) {
			return s.denied(txCtx, req.ID, actor.ID)
		}
		if err := dto.Validate(); err != nil {
			return err
		}
		role = currentRole(status, level)

		if step, ok := fanInStep(status, level); ok {
			rows, err := s.approvals.Rows(txCtx, req.ID, step)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				if _, err := s.approvals.Decide(txCtx, req.ID, step, actor.ID, approval.DecisionReject, "", reason); err != nil {
					return err
				}
			}
		}
		if err := s.approvals.LockAll(txCtx, req.ID); err != nil {
			return err
		}
		if req.HasBudget {
			if err := s.departments.Release(txCtx, req.DepartmentID, fiscalYear(req), EffectiveBudget(req)); err != nil {
				return err
			}
		}

		now := s.now()
		req.RejectedAt = &now
		req.RejectedBy = actor.ID
		req.RejectionReason = reason
		req.RejectionStage = previous
		req.Status = string(workflow.StatusRejected)
		req.CurrentApproverRole = ""
		unpin(req)

		return s.persist(txCtx, req, previous, version, &History{
			Action:    ActionRejected,
			ActorID:   actor.ID,
			ActorRole: string(role),
			Comments:  reason,
			Metadata:  JSONMap{"rejection_stage": previous},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request rejected",
		"request_id", req.ID,
		"actor_id", actor.ID,
		"rejection_stage", previous)

	e := s.event(events.EventTypeRequestRejected, req, actor, previous)
	e.ActorRole = string(role)
	e.Recipients = owners(req)
	e.Title = "Travel request rejected"
	e.Message = fmt.Sprintf("%s was rejected by %s: %s", req.RequestNumber, role.Label(), reason)
	s.publish(ctx, e)
	return req, nil
}

// Cancel withdraws a request. Owners cancel directly; administrators
// cancelling someone else's request must re-enter their password first.
func (s *Service) Cancel(ctx context.Context, id string, actor *rbac.Actor, dto CancelDTO) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(dto.Reason)

	pre, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow.Status(pre.Status).IsTerminal() {
		return nil, ErrTerminal
	}
	allowed, needsReauth := rbac.CanCancel(actor, pre.RequesterID, pre.SubmittedByUserID)
	if !allowed {
		return nil, ErrNotOwner
	}
	if needsReauth {
		if err := s.reauth.Verify(ctx, actor.ID, dto.Password); err != nil {
			s.logger.WarnContext(ctx, "admin cancellation re-authentication failed",
				"request_id", id, "actor_id", actor.ID, "error", err)
			return nil, err
		}
	}
	role := workflow.RoleRequester
	if needsReauth {
		role = workflow.RoleAdmin
	}

	var (
		req      *Request
		previous string
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.lock(txCtx, id)
		if err != nil {
			return err
		}
		previous = req.Status
		version := req.Version
		if workflow.Status(req.Status).IsTerminal() {
			return ErrTerminal
		}

		if err := s.approvals.LockAll(txCtx, req.ID); err != nil {
			return err
		}
		if req.HasBudget {
			if err := s.departments.Release(txCtx, req.DepartmentID, fiscalYear(req), EffectiveBudget(req)); err != nil {
				return err
			}
		}

		now := s.now()
		req.CancelledAt = &now
		req.CancelledBy = actor.ID
		req.CancellationReason = reason
		req.Status = string(workflow.StatusCancelled)
		req.CurrentApproverRole = ""
		unpin(req)

		return s.persist(txCtx, req, previous, version, &History{
			Action:    ActionCancelled,
			ActorID:   actor.ID,
			ActorRole: string(role),
			Comments:  reason,
			Metadata:  JSONMap{"reauthenticated": needsReauth},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request cancelled",
		"request_id", req.ID,
		"actor_id", actor.ID,
		"previous_status", previous,
		"by_admin", needsReauth)

	e := s.event(events.EventTypeRequestCancelled, req, actor, previous)
	e.ActorRole = string(role)
	e.Recipients = owners(req)
	e.Title = "Travel request cancelled"
	e.Message = fmt.Sprintf("%s was cancelled: %s", req.RequestNumber, reason)
	s.publish(ctx, e)
	return req, nil
}

// ReturnToSender sends the request back to the requester or the head.
// Signatures of other stages survive; the category decides which ones are
// voided.
func (s *Service) ReturnToSender(ctx context.Context, id string, actor *rbac.Actor, dto ReturnDTO) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if err := dto.Validate(s.cfg.ReturnCommentMinLength); err != nil {
		return nil, err
	}
	category := workflow.ReturnCategory(dto.Category)
	comments := strings.TrimSpace(dto.Comments)

	var (
		req      *Request
		previous string
		role     workflow.Role
		plan     stagePlan
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.lock(txCtx, id)
		if err != nil {
			return err
		}
		previous = req.Status
		version := req.Version
		status, level := workflow.Normalize(workflow.Status(req.Status), workflow.ExecLevel(req.ExecLevel))

		if status.IsTerminal() {
			return ErrTerminal
		}
		if !status.IsApprovalStage() {
			return ErrInvalidStatus
		}
		target, err := s.target(txCtx, req, status, level)
		if err != nil {
			return err
		}
		if !rbac.CanReturn(actor, target) {
			return ErrNotApprover
		}
		role = currentRole(status, level)

		attrs, err := s.attributes(txCtx, req)
		if err != nil {
			return err
		}
		next, err := workflow.ReturnStatus(status, workflow.ReturnTarget(dto.Target), attrs)
		if err != nil {
			return internal.NewValidationFieldError("target", err.Error(), internal.ErrCodeInvalidTarget)
		}

		if err := s.approvals.LockAll(txCtx, req.ID); err != nil {
			return err
		}
		for _, stage := range category.Invalidates() {
			clearSignature(signature(req, stage))
		}
		if category == workflow.ReturnDriverChange {
			req.AssignedVehicleID = nil
			req.AssignedDriverID = nil
		}
		switch next {
		case workflow.StatusPendingHead:
			clearSignature(&req.Head)
		case workflow.StatusPendingRequesterSignature:
			req.RequesterSignature = ""
			req.RequesterSignedAt = nil
		}

		now := s.now()
		req.ReturnedAt = &now
		req.ReturnedBy = actor.ID
		req.ReturnReason = string(category)
		req.ReturnComments = comments
		req.ReturnCount++
		unpin(req)

		plan = stagePlan{status: next}
		if next == workflow.StatusPendingHead {
			if plan, err = s.planStage(txCtx, req, next); err != nil {
				return err
			}
		}
		s.apply(req, plan)

		if err := s.persist(txCtx, req, previous, version, &History{
			Action:    ActionReturned,
			ActorID:   actor.ID,
			ActorRole: string(role),
			Comments:  comments,
			Metadata: JSONMap{
				"category": string(category),
				"target":   string(next),
			},
		}); err != nil {
			return err
		}
		return s.openApprovals(txCtx, req, plan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request returned",
		"request_id", req.ID,
		"actor_id", actor.ID,
		"category", category,
		"previous_status", previous,
		"status", req.Status)

	e := s.event(events.EventTypeRequestReturned, req, actor, previous)
	e.ActorRole = string(role)
	e.Recipients = s.recipients(req, plan)
	if req.Status == string(workflow.StatusPendingRequesterSignature) {
		e.Recipients = owners(req)
	}
	e.Title = "Travel request returned"
	e.Message = fmt.Sprintf("%s was returned by %s (%s): %s", req.RequestNumber, role.Label(), category, comments)
	s.publish(ctx, e)
	return req, nil
}

// Sign records the requester's signature and moves the request on to the
// first stage that still needs one.
func (s *Service) Sign(ctx context.Context, id string, actor *rbac.Actor, dto SignDTO) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var (
		req      *Request
		previous string
		plan     stagePlan
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.lock(txCtx, id)
		if err != nil {
			return err
		}
		previous = req.Status
		version := req.Version
		status := workflow.Status(req.Status)

		if status.IsTerminal() {
			return ErrTerminal
		}
		if status != workflow.StatusPendingRequesterSignature {
			return ErrInvalidStatus
		}
		if actor.ID != req.RequesterID {
			return ErrNotOwner
		}
		if err := s.awaitInvitees(txCtx, req.ID, approval.InvitationRequester); err != nil {
			return err
		}

		now := s.now()
		req.RequesterSignature = dto.Signature
		req.RequesterSignedAt = &now

		attrs, err := s.attributes(txCtx, req)
		if err != nil {
			return err
		}
		next, err := s.engine.Next(status, attrs)
		if err != nil {
			return internal.NewInternalError("Cannot route request", err)
		}
		if plan, err = s.planStage(txCtx, req, next); err != nil {
			return err
		}
		s.apply(req, plan)
		if plan.status == workflow.StatusApproved {
			req.FinalApprovedAt = &now
			if req.HasBudget {
				if err := s.departments.Commit(txCtx, req.DepartmentID, fiscalYear(req), EffectiveBudget(req)); err != nil {
					return err
				}
			}
		}

		if err := s.persist(txCtx, req, previous, version, &History{
			Action:    ActionSigned,
			ActorID:   actor.ID,
			ActorRole: string(workflow.RoleRequester),
			Metadata:  JSONMap{"signature": signaturePresence(dto.Signature)},
		}); err != nil {
			return err
		}
		return s.openApprovals(txCtx, req, plan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request signed by requester", "request_id", req.ID, "status", req.Status)

	e := s.event(events.EventTypeRequestSigned, req, actor, previous)
	e.ActorRole = string(workflow.RoleRequester)
	e.Recipients = s.recipients(req, plan)
	e.Title = "Travel request signed"
	e.Message = fmt.Sprintf("%s was signed by the requester and is waiting for %s", req.RequestNumber, roleLabel(req))
	s.publish(ctx, e)
	return req, nil
}

// Complete marks an approved trip as done.
func (s *Service) Complete(ctx context.Context, id string, actor *rbac.Actor) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	var (
		req      *Request
		previous string
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.lock(txCtx, id)
		if err != nil {
			return err
		}
		previous = req.Status
		version := req.Version
		status := workflow.Status(req.Status)

		if status != workflow.StatusApproved {
			if status.IsTerminal() {
				return ErrTerminal
			}
			return ErrInvalidStatus
		}
		if !actor.Has(workflow.RoleAdmin) && actor.ID != req.RequesterID {
			return ErrNotOwner
		}

		now := s.now()
		req.CompletedAt = &now
		req.Status = string(workflow.StatusCompleted)

		return s.persist(txCtx, req, previous, version, &History{
			Action:    ActionCompleted,
			ActorID:   actor.ID,
			ActorRole: string(actorRole(actor, req)),
		})
	})
	if err != nil {
		return nil, err
	}

	e := s.event(events.EventTypeRequestCompleted, req, actor, previous)
	e.Recipients = owners(req)
	e.Title = "Trip completed"
	e.Message = fmt.Sprintf("%s has been marked as completed", req.RequestNumber)
	s.publish(ctx, e)
	return req, nil
}

// AssignResources books a vehicle and driver for the trip after checking
// neither is taken over the travel dates. Two admins assigning the same
// vehicle at the same moment can both pass the check; the row version only
// serializes writes to one request.
func (s *Service) AssignResources(ctx context.Context, id string, actor *rbac.Actor, dto AssignDTO) (*AssignResult, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.Has(workflow.RoleAdmin) {
		return nil, ErrNotApprover
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	pre, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	status := workflow.Status(pre.Status)
	if status.IsTerminal() && status != workflow.StatusApproved {
		return nil, ErrTerminal
	}
	if status == workflow.StatusDraft {
		return nil, ErrInvalidStatus
	}

	res, err := s.availability.CheckBoth(ctx, dto.VehicleID, dto.DriverID, pre.TravelStartDate, pre.TravelEndDate, pre.ID)
	if err != nil {
		return nil, err
	}
	if !res.BothAvailable {
		return nil, unavailable(res)
	}

	var req *Request
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.lock(txCtx, id)
		if err != nil {
			return err
		}
		if req.Version != pre.Version {
			return ErrStale
		}
		if dto.VehicleID != "" {
			v := dto.VehicleID
			req.AssignedVehicleID = &v
			req.NeedsVehicle = true
			if req.VehicleMode == "" || req.VehicleMode == VehicleModeNone {
				req.VehicleMode = VehicleModeInstitutional
			}
		}
		if dto.DriverID != "" {
			d := dto.DriverID
			req.AssignedDriverID = &d
		}
		if dto.PickupLocation != "" {
			req.PickupLocation = dto.PickupLocation
		}
		if dto.PickupTime != nil {
			req.PickupTime = dto.PickupTime
		}
		return s.save(txCtx, req, req.Status, req.Version, "assigned")
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "resources assigned",
		"request_id", req.ID,
		"vehicle_id", dto.VehicleID,
		"driver_id", dto.DriverID,
		"degraded", res.Vehicle.Degraded || res.Driver.Degraded)

	e := s.event(events.EventTypeRequestAssigned, req, actor, req.Status)
	e.ActorRole = string(workflow.RoleAdmin)
	e.Recipients = owners(req)
	e.Title = "Vehicle assigned"
	e.Message = fmt.Sprintf("Transport for %s has been arranged", req.RequestNumber)
	s.publish(ctx, e)
	return &AssignResult{Request: req, Availability: res}, nil
}

func actorRole(actor *rbac.Actor, req *Request) workflow.Role {
	if actor.ID == req.RequesterID {
		return workflow.RoleRequester
	}
	if actor.Has(workflow.RoleAdmin) {
		return workflow.RoleAdmin
	}
	return workflow.RoleRequester
}
