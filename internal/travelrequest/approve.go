package travelrequest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/availability"
	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// stagePlan is where a request lands and who must act there.
type stagePlan struct {
	status       workflow.Status
	step         approval.Step
	policy       approval.Policy
	approvers    []string
	departmentID string
	note         string
}

// Approve signs the current stage for actor and forwards the request.
func (s *Service) Approve(ctx context.Context, id string, actor *rbac.Actor, dto ApproveDTO) (*ApproveResult, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	pre, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow.Status(pre.Status) == workflow.StatusPendingAdmin {
		if err := s.ensureAvailable(ctx, pre, deref(pre.AssignedVehicleID), deref(pre.AssignedDriverID)); err != nil {
			return nil, err
		}
	}

	var (
		result   ApproveResult
		plan     stagePlan
		previous string
		forward  bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.lock(txCtx, id)
		if err != nil {
			return err
		}
		previous = req.Status
		version := req.Version
		status, level := workflow.Normalize(workflow.Status(req.Status), workflow.ExecLevel(req.ExecLevel))
		req.ExecLevel = string(level)

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
		if status == workflow.StatusPendingHead || status == workflow.StatusPendingParentHead {
			// heads endorse once every co-requester and invited head has confirmed
			if err := s.awaitInvitees(txCtx, req.ID, approval.InvitationRequester, approval.InvitationHeadEndorsement); err != nil {
				return err
			}
		}
		actingRole := currentRole(status, level)

		outstanding := false
		if step, ok := fanInStep(status, level); ok {
			rows, err := s.approvals.Rows(txCtx, req.ID, step)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				summary, err := s.approvals.Decide(txCtx, req.ID, step, actor.ID, approval.DecisionApprove, dto.Signature, dto.Comments)
				if err != nil {
					if internal.IsType(err, internal.ErrorTypeConflict) {
						s.logger.InfoContext(txCtx, "approval lost to a concurrent approver", "request_id", req.ID, "step", step, "approver_id", actor.ID)
					}
					return err
				}
				outstanding = !summary.AllConfirmed
				result.Summary = &summary
			}
		}

		now := s.now()
		stampApproval(req, status, level, actor, dto, now, outstanding)

		if status == workflow.StatusPendingComptroller && dto.EditedBudget != nil {
			if err := s.editBudget(txCtx, req, *dto.EditedBudget); err != nil {
				return err
			}
		}
		if status == workflow.StatusPendingHR && s.cfg.RequireExecutive {
			requester, err := s.directory.GetByID(txCtx, req.RequesterID)
			if err != nil {
				return err
			}
			level = s.execLevel(req, requester)
			req.ExecLevel = string(level)
		}

		attrs, err := s.attributes(txCtx, req)
		if err != nil {
			return err
		}
		attrs.ExecOutstanding = outstanding
		next, err := s.engine.Next(status, attrs)
		if err != nil {
			return internal.NewInternalError("Cannot route request", err)
		}

		plan = stagePlan{status: next}
		forward = next != status
		if forward {
			unpin(req)
			if dto.NextApproverID != "" {
				if dto.NextApproverID == req.RequesterID {
					return ErrSelfPinned
				}
				pin(req, dto.NextApproverID, next)
			}
			if plan, err = s.planStage(txCtx, req, next); err != nil {
				return err
			}
			s.apply(req, plan)
		}
		if plan.status == workflow.StatusApproved {
			req.FinalApprovedAt = &now
			if req.HasBudget {
				if err := s.departments.Commit(txCtx, req.DepartmentID, fiscalYear(req), EffectiveBudget(req)); err != nil {
					return err
				}
			}
		}

		meta := JSONMap{
			"signature": signaturePresence(dto.Signature),
			"stage":     string(status),
		}
		if status == workflow.StatusPendingExec {
			meta["exec_level"] = string(level)
		}
		if outstanding && result.Summary != nil {
			meta["awaiting_approvers"] = result.Summary.Pending
		}
		if plan.note != "" {
			meta["admin_notes"] = plan.note
		}
		h := &History{
			Action:    ActionApproved,
			ActorID:   actor.ID,
			ActorRole: string(actingRole),
			Comments:  dto.Comments,
			Metadata:  meta,
		}
		if err := s.persist(txCtx, req, previous, version, h); err != nil {
			return err
		}
		if forward {
			if err := s.openApprovals(txCtx, req, plan); err != nil {
				return err
			}
		}

		result.Request = req
		result.Message = approveMessage(req, outstanding)
		return nil
	})
	if err != nil {
		if !internal.IsType(err, internal.ErrorTypeConflict) && !internal.IsType(err, internal.ErrorTypeForbidden) {
			s.logger.ErrorContext(ctx, "failed to approve request", "error", err, "request_id", id, "actor_id", actor.ID)
		}
		return nil, err
	}

	req := result.Request
	s.logger.InfoContext(ctx, "request approved",
		"request_id", req.ID,
		"actor_id", actor.ID,
		"previous_status", previous,
		"status", req.Status)

	if forward {
		e := s.event(events.EventTypeRequestApproved, req, actor, previous)
		e.ActorRole = req.CurrentApproverRole
		if req.Status == string(workflow.StatusApproved) {
			e.Recipients = owners(req)
			e.Title = "Travel request approved"
			e.Message = fmt.Sprintf("%s has been fully approved", req.RequestNumber)
		} else {
			e.Recipients = s.recipients(req, plan)
			e.Title = "Travel request awaiting your approval"
			e.Message = fmt.Sprintf("%s is waiting for %s approval", req.RequestNumber, roleLabel(req))
		}
		s.publish(ctx, e)
	}
	return &result, nil
}

// planStage resolves who acts at status. Fan-in stages get their approver
// rows; a head stage with nobody to route to falls through to admin triage.
func (s *Service) planStage(ctx context.Context, req *Request, status workflow.Status) (stagePlan, error) {
	plan := stagePlan{status: status}
	pinned := metaString(req.WorkflowMetadata, MetaNextApproverID)

	switch status {
	case workflow.StatusPendingHead, workflow.StatusPendingParentHead:
		deptID := req.DepartmentID
		step := approval.StepHead
		note := NoteNoDepartmentHead
		if status == workflow.StatusPendingParentHead {
			parent, err := s.parentDepartment(ctx, req.DepartmentID)
			if err != nil {
				return plan, err
			}
			deptID = parent
			step = approval.StepParentHead
			note = NoteNoParentDepartmentHead
		}
		ids := []string{pinned}
		if pinned == "" {
			heads, err := s.directory.HeadsOf(ctx, deptID)
			if err != nil {
				return plan, err
			}
			ids = heads
		}
		ids = without(ids, req.RequesterID)
		if len(ids) == 0 {
			s.logger.WarnContext(ctx, "no department head to route to",
				"request_id", req.ID, "department_id", deptID, "status", status)
			unpin(req)
			return stagePlan{status: workflow.StatusPendingAdmin, note: note}, nil
		}
		plan.step = step
		plan.policy = approval.PolicyAnyOne
		plan.approvers = ids
		plan.departmentID = deptID

	case workflow.StatusPendingAdmin, workflow.StatusPendingComptroller, workflow.StatusPendingHR:
		if pinned != "" {
			break
		}
		role, _ := workflow.ApproverRole(status)
		pool, err := s.directory.ApproversFor(ctx, role)
		if err != nil {
			return plan, err
		}
		if len(without(pool, req.RequesterID)) == 0 {
			s.logger.WarnContext(ctx, "requester is the only holder of the stage role",
				"request_id", req.ID, "status", status, "role", role)
			req.WorkflowMetadata[MetaDelegatedStage] = string(status)
			plan.note = fmt.Sprintf(NoteNoStageApprover, strings.ToUpper(string(role)))
		}

	case workflow.StatusPendingExec:
		if workflow.ExecLevel(req.ExecLevel) != workflow.ExecLevelBothVPs || pinned != "" {
			break
		}
		vps, err := s.directory.ApproversFor(ctx, workflow.RoleVP)
		if err != nil {
			return plan, err
		}
		vps = without(vps, req.RequesterID)
		if len(vps) < workflow.ExecLevelBothVPs.RequiredSigners() {
			// one vice president signs alone
			s.logger.WarnContext(ctx, "not enough vice presidents for a joint approval",
				"request_id", req.ID, "available", len(vps))
			break
		}
		plan.step = approval.StepExec
		plan.policy = approval.PolicyAllOf
		plan.approvers = vps
	}
	return plan, nil
}

func (s *Service) apply(req *Request, plan stagePlan) {
	req.Status = string(plan.status)
	req.CurrentApproverRole = string(currentRole(plan.status, workflow.ExecLevel(req.ExecLevel)))
	if plan.note != "" {
		req.AdminNotes = appendNote(req.AdminNotes, plan.note)
	}
	if plan.status == workflow.StatusPendingExec || plan.status == workflow.StatusPendingHR {
		// an exec stage restarted after a return collects its signers again
		if !req.Exec.Signed() {
			clearSignature(&req.VP)
			clearSignature(&req.VP2)
			clearSignature(&req.President)
			req.BothVPsApproved = false
		}
	}
}

func (s *Service) openApprovals(ctx context.Context, req *Request, plan stagePlan) error {
	if plan.step == "" {
		return nil
	}
	_, err := s.approvals.Reopen(ctx, req.ID, plan.step, plan.policy, plan.approvers)
	return err
}

// recipients addresses the actors of the stage the request just entered.
func (s *Service) recipients(req *Request, plan stagePlan) events.Recipients {
	if len(plan.approvers) > 0 {
		return events.Recipients{UserIDs: plan.approvers}
	}
	if pinned := metaString(req.WorkflowMetadata, MetaNextApproverID); pinned != "" {
		return events.Recipients{UserIDs: []string{pinned}}
	}
	switch plan.status {
	case workflow.StatusPendingRequesterSignature:
		return events.Recipients{UserIDs: []string{req.RequesterID}}
	case workflow.StatusApproved:
		return owners(req)
	}
	role := currentRole(plan.status, workflow.ExecLevel(req.ExecLevel))
	if role == "" {
		return events.Recipients{}
	}
	return events.Recipients{Role: string(role)}
}

func (s *Service) editBudget(ctx context.Context, req *Request, edited decimal.Decimal) error {
	old := EffectiveBudget(req)
	if edited.Equal(old) {
		return nil
	}
	if req.HasBudget {
		year := fiscalYear(req)
		if err := s.departments.Release(ctx, req.DepartmentID, year, old); err != nil {
			return err
		}
		if err := s.departments.Reserve(ctx, req.DepartmentID, year, edited); err != nil {
			return err
		}
	}
	req.ComptrollerEditedBudget = decimal.NewNullDecimal(edited)
	return nil
}

func (s *Service) ensureAvailable(ctx context.Context, req *Request, vehicleID, driverID string) error {
	if vehicleID == "" && driverID == "" {
		return nil
	}
	res, err := s.availability.CheckBoth(ctx, vehicleID, driverID, req.TravelStartDate, req.TravelEndDate, req.ID)
	if err != nil {
		return err
	}
	if !res.BothAvailable {
		return unavailable(res)
	}
	return nil
}

func unavailable(res availability.BothResult) error {
	e := *ErrResourceUnavailable
	e.Details = res
	return &e
}

// denied tells an approver who lost a fan-in race apart from one who was
// never allowed to act.
func (s *Service) denied(ctx context.Context, requestID, actorID string) error {
	rows, err := s.approvals.Rows(ctx, requestID, "")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.ApproverID == actorID && r.Action == string(approval.ActionLocked) {
			return approval.ErrAlreadyProcessed
		}
	}
	return ErrNotApprover
}

func fanInStep(status workflow.Status, level workflow.ExecLevel) (approval.Step, bool) {
	switch status {
	case workflow.StatusPendingHead:
		return approval.StepHead, true
	case workflow.StatusPendingParentHead:
		return approval.StepParentHead, true
	case workflow.StatusPendingExec:
		if level == workflow.ExecLevelBothVPs {
			return approval.StepExec, true
		}
	}
	return "", false
}

// stampApproval writes actor's sign-off into the current stage's fields.
// The executive stage records the individual seat and closes the shared
// exec block only once every required signer is in.
func stampApproval(req *Request, status workflow.Status, level workflow.ExecLevel, actor *rbac.Actor, dto ApproveDTO, now time.Time, outstanding bool) {
	if status != workflow.StatusPendingExec {
		if stage, ok := workflow.StageOf(status); ok {
			stamp(signature(req, stage), actor.ID, dto.Signature, dto.Comments, now)
		}
		return
	}

	switch {
	case level == workflow.ExecLevelPresident,
		actor.Has(workflow.RolePresident) && !actor.Has(workflow.RoleVP):
		stamp(&req.President, actor.ID, dto.Signature, dto.Comments, now)
	case level == workflow.ExecLevelBothVPs && req.VP.Signed() && req.VP.ApprovedBy != actor.ID:
		stamp(&req.VP2, actor.ID, dto.Signature, dto.Comments, now)
	default:
		stamp(&req.VP, actor.ID, dto.Signature, dto.Comments, now)
	}
	if !outstanding {
		stamp(&req.Exec, actor.ID, dto.Signature, dto.Comments, now)
		if level == workflow.ExecLevelBothVPs {
			req.BothVPsApproved = true
		}
	}
}

func approveMessage(req *Request, outstanding bool) string {
	switch {
	case req.Status == string(workflow.StatusApproved):
		return "Request fully approved"
	case outstanding:
		return "Approval recorded, waiting for the remaining approvers"
	}
	return "Request approved and forwarded to " + roleLabel(req)
}

// pin routes the stage at status to one chosen user.
func pin(req *Request, userID string, status workflow.Status) {
	if req.WorkflowMetadata == nil {
		req.WorkflowMetadata = JSONMap{}
	}
	req.WorkflowMetadata[MetaNextApproverID] = userID
	req.WorkflowMetadata[MetaNextApproverRole] = string(currentRole(status, workflow.ExecLevel(req.ExecLevel)))
	if status == workflow.StatusPendingExec && workflow.ExecLevel(req.ExecLevel) == workflow.ExecLevelPresident {
		req.WorkflowMetadata[MetaNextPresidentID] = userID
	}
}

func unpin(req *Request) {
	delete(req.WorkflowMetadata, MetaNextApproverID)
	delete(req.WorkflowMetadata, MetaNextApproverRole)
	delete(req.WorkflowMetadata, MetaNextPresidentID)
	delete(req.WorkflowMetadata, MetaDelegatedStage)
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && id != drop {
			out = append(out, id)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
