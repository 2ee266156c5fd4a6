package travelrequest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/approval"
	"github.com/frahmantamala/travel-approval/internal/availability"
	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/internal/department"
	"github.com/frahmantamala/travel-approval/internal/metrics"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/store"
	"github.com/frahmantamala/travel-approval/internal/user"
	"github.com/frahmantamala/travel-approval/internal/workflow"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

// Approvals is the fan-in side of the workflow.
type Approvals interface {
	Reopen(ctx context.Context, requestID string, step approval.Step, policy approval.Policy, approverIDs []string) ([]*approval.Approval, error)
	Rows(ctx context.Context, requestID string, step approval.Step) ([]*approval.Approval, error)
	Decide(ctx context.Context, requestID string, step approval.Step, approverID string, d approval.Decision, signature, reason string) (approval.Summary, error)
	LockAll(ctx context.Context, requestID string) error
	Pending(ctx context.Context, approverID string) ([]*approval.Approval, error)
	InvitationSummary(ctx context.Context, requestID string, kind approval.InvitationKind) (approval.Summary, error)
}

type Availability interface {
	CheckBoth(ctx context.Context, vehicleID, driverID string, start, end time.Time, excludeRequestID string) (availability.BothResult, error)
}

type Departments interface {
	Get(ctx context.Context, id string) (*department.Department, error)
	Reserve(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error
	Release(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error
	Commit(ctx context.Context, departmentID string, fiscalYear int, amount decimal.Decimal) error
}

// Directory looks users up and expands approver pools.
type Directory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	HeadsOf(ctx context.Context, departmentID string) ([]string, error)
	ApproversFor(ctx context.Context, role workflow.Role) ([]string, error)
}

type Reauthenticator interface {
	Verify(ctx context.Context, userID, password string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Deps struct {
	Repo         Repository
	Tx           store.TxManager
	Engine       *workflow.Engine
	Approvals    Approvals
	Availability Availability
	Departments  Departments
	Directory    Directory
	Reauth       Reauthenticator
	Events       EventPublisher
	Config       internal.WorkflowConfig
	Logger       *slog.Logger
	Now          func() time.Time
}

// Service runs every request transition. Each one loads the request,
// authorizes the actor, writes the conditional update and its history row in
// one transaction, then publishes a request event once the transaction has
// committed.
type Service struct {
	repo         Repository
	tx           store.TxManager
	engine       *workflow.Engine
	approvals    Approvals
	availability Availability
	departments  Departments
	directory    Directory
	reauth       Reauthenticator
	events       EventPublisher
	cfg          internal.WorkflowConfig
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:         d.Repo,
		tx:           d.Tx,
		engine:       d.Engine,
		approvals:    d.Approvals,
		availability: d.Availability,
		departments:  d.Departments,
		directory:    d.Directory,
		reauth:       d.Reauth,
		events:       d.Events,
		cfg:          d.Config,
		logger:       d.Logger,
		now:          d.Now,
	}
	if s.engine == nil {
		s.engine = workflow.NewEngine(workflow.Options{RequireExecutive: d.Config.RequireExecutive})
	}
	if s.logger == nil {
		s.logger = logger.LoggerWrapper()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submit files a new request and routes it to its first stage. The
// submission itself is not a transition and leaves no history row.
func (s *Service) Submit(ctx context.Context, actor *rbac.Actor, dto SubmitDTO) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	requester, err := s.requester(ctx, actor, dto.RequesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsHead && !dto.HeadIncluded {
		return nil, ErrHeadNotIncluded
	}
	if dto.NextApproverID != "" && dto.NextApproverID == requester.ID {
		return nil, ErrSelfPinned
	}

	now := s.now()
	req := &Request{
		ID:                uuid.NewString(),
		RequestType:       dto.RequestType,
		Purpose:           strings.TrimSpace(dto.Purpose),
		Destination:       strings.TrimSpace(dto.Destination),
		IsInternational:   dto.IsInternational,
		RequesterID:       requester.ID,
		SubmittedByUserID: actor.ID,
		DepartmentID:      requester.DepartmentID,
		RequesterIsHead:   requester.IsHead,
		IsRepresentative:  requester.ID != actor.ID,
		HeadIncluded:      dto.HeadIncluded || requester.IsHead,
		HasBudget:         dto.HasBudget,
		TotalBudget:       dto.TotalBudget,
		ExpenseBreakdown:  JSONMap(dto.ExpenseBreakdown),
		NeedsVehicle:      dto.NeedsVehicle,
		NeedsRental:       dto.NeedsRental,
		VehicleMode:       vehicleMode(dto),
		PickupLocation:    dto.PickupLocation,
		PickupTime:        dto.PickupTime,
		TravelStartDate:   dto.TravelStartDate.Time,
		TravelEndDate:     dto.TravelEndDate.Time,
		Status:            string(workflow.StatusDraft),
		WorkflowMetadata:  JSONMap{},
		Version:           1,
	}
	if req.ExpenseBreakdown == nil {
		req.ExpenseBreakdown = JSONMap{}
	}
	if len(dto.ParticipantDepartmentIDs) > 0 {
		req.WorkflowMetadata[MetaParticipantDepts] = dto.ParticipantDepartmentIDs
	}

	if needsVehicle(req) && s.cfg.DailyVehicleLimit > 0 {
		n, err := s.repo.CountVehicleRequestsOn(ctx, req.TravelStartDate)
		if err != nil {
			return nil, err
		}
		if n >= int64(s.cfg.DailyVehicleLimit) {
			return nil, ErrVehicleLimit
		}
	}

	s.preSign(req, actor, dto.Signature, now)

	if s.cfg.RequireExecutive {
		req.ExecLevel = string(s.execLevel(req, requester))
	}
	attrs, err := s.attributes(ctx, req)
	if err != nil {
		return nil, err
	}
	initial := s.engine.Initial(attrs)
	if dto.NextApproverID != "" {
		pinned := initial
		if initial == workflow.StatusPendingRequesterSignature {
			if pinned, err = s.engine.Next(initial, attrs); err != nil {
				return nil, internal.NewInternalError("Cannot route request", err)
			}
		}
		pin(req, dto.NextApproverID, pinned)
	}
	plan, err := s.planStage(ctx, req, initial)
	if err != nil {
		return nil, err
	}

	prefix := RequestType(req.RequestType).NumberPrefix()
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.repo.NextNumber(txCtx, prefix, now.Year())
		if err != nil {
			return err
		}
		req.RequestNumber = fmt.Sprintf("%s-%d-%04d", prefix, now.Year(), n)

		if req.HasBudget {
			if err := s.departments.Reserve(txCtx, req.DepartmentID, fiscalYear(req), EffectiveBudget(req)); err != nil {
				return err
			}
		}
		s.apply(req, plan)
		if err := s.repo.Create(txCtx, req); err != nil {
			return err
		}
		return s.openApprovals(txCtx, req, plan)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to submit request", "error", err, "requester_id", requester.ID)
		return nil, err
	}

	metrics.RecordTransition("submitted", string(workflow.StatusDraft), req.Status)
	s.logger.InfoContext(ctx, "request submitted",
		"request_id", req.ID,
		"request_number", req.RequestNumber,
		"status", req.Status,
		"exec_level", req.ExecLevel)

	e := s.event(events.EventTypeRequestSubmitted, req, actor, string(workflow.StatusDraft))
	e.Recipients = s.recipients(req, plan)
	e.Title = "New travel request"
	e.Message = fmt.Sprintf("%s is waiting for %s", req.RequestNumber, roleLabel(req))
	s.publish(ctx, e)
	return req, nil
}

// requester resolves who the request is for. Filing for someone else
// makes the submitter a representative.
func (s *Service) requester(ctx context.Context, actor *rbac.Actor, requesterID string) (*user.User, error) {
	id := requesterID
	if id == "" {
		id = actor.ID
	}
	u, err := s.directory.GetByID(ctx, id)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) && id != actor.ID {
			return nil, internal.NewValidationFieldError("requester_id", "Requester does not exist", internal.ErrCodeUserNotFound)
		}
		return nil, err
	}
	if !u.IsActive() {
		return nil, internal.NewValidationFieldError("requester_id", "Requester account is inactive", internal.ErrCodeUserInactive)
	}
	return u, nil
}

// preSign applies the signatures collected at submission. A head filing
// their own request signs the head stage with the same signature; a head
// filing for someone in their department endorses it on the spot.
func (s *Service) preSign(req *Request, actor *rbac.Actor, sig string, now time.Time) {
	if sig == "" {
		return
	}
	if !req.IsRepresentative {
		req.RequesterSignature = sig
		t := now
		req.RequesterSignedAt = &t
		if req.RequesterIsHead {
			stamp(&req.Head, req.RequesterID, sig, "", now)
		}
		return
	}
	if actor.Has(workflow.RoleHead) && actor.DepartmentID != "" && actor.DepartmentID == req.DepartmentID {
		stamp(&req.Head, actor.ID, sig, "Endorsed at submission", now)
	}
}

func vehicleMode(dto SubmitDTO) string {
	switch {
	case dto.VehicleMode != "":
		return dto.VehicleMode
	case dto.NeedsRental:
		return VehicleModeRental
	case dto.NeedsVehicle:
		return VehicleModeInstitutional
	}
	return VehicleModeNone
}

// Get returns the request if actor may see it.
func (s *Service) Get(ctx context.Context, id string, actor *rbac.Actor) (*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanView(actor, rbac.Target{RequesterID: req.RequesterID, SubmitterID: req.SubmittedByUserID}) {
		return nil, ErrNotOwner
	}
	return req, nil
}

// AuthorizeInvite lets the requester or the submitter send invitations while
// the request is still open.
func (s *Service) AuthorizeInvite(ctx context.Context, id string, actor *rbac.Actor) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actor.ID != req.RequesterID && actor.ID != req.SubmittedByUserID {
		return ErrNotOwner
	}
	if workflow.Status(req.Status).IsTerminal() {
		return ErrTerminal
	}
	return nil
}

// awaitInvitees holds the request while any invitation of kinds is still
// unanswered, declined or lapsed. A request without invitations passes.
func (s *Service) awaitInvitees(ctx context.Context, requestID string, kinds ...approval.InvitationKind) error {
	for _, kind := range kinds {
		summary, err := s.approvals.InvitationSummary(ctx, requestID, kind)
		if err != nil {
			return err
		}
		if summary.Total > 0 && !summary.AllConfirmed {
			return ErrAwaitingInvitees
		}
	}
	return nil
}

func (s *Service) History(ctx context.Context, id string, actor *rbac.Actor) ([]*History, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// Tracking assembles the progress view: path, percentage and timeline.
func (s *Service) Tracking(ctx context.Context, id string, actor *rbac.Actor) (*Tracking, error) {
	req, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	attrs, err := s.attributes(ctx, req)
	if err != nil {
		return nil, err
	}
	status, level := workflow.Normalize(workflow.Status(req.Status), workflow.ExecLevel(req.ExecLevel))

	t := &Tracking{
		Request:     req,
		StatusLabel: status.Label(),
		Progress:    s.engine.Progress(status, attrs),
		Steps:       s.engine.Steps(status, attrs),
		History:     history,
	}
	target, err := s.target(ctx, req, status, level)
	if err != nil {
		return nil, err
	}
	if rbac.CanReturn(actor, target) {
		for _, rt := range workflow.ReturnTargets(status, attrs) {
			t.ReturnTo = append(t.ReturnTo, string(rt))
		}
	}
	return t, nil
}

// List serves the three listing scopes. The inbox merges fan-in rows
// waiting on the actor with the stages their roles act on.
func (s *Service) List(ctx context.Context, actor *rbac.Actor, q ListQuery) ([]*Request, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	var statuses []string
	if q.Status != "" {
		st, err := workflow.ParseStatus(q.Status)
		if err != nil {
			return nil, internal.NewValidationFieldError("status", err.Error(), internal.ErrCodeInvalidStatus)
		}
		statuses = []string{string(st)}
	}

	switch q.Scope {
	case "", ScopeMine:
		return s.repo.List(ctx, ListFilter{OwnerID: actor.ID, Statuses: statuses, Limit: q.Limit, Offset: q.Offset})
	case ScopeAll:
		if !actor.Caps.IsApprover() {
			return nil, ErrNotApprover
		}
		return s.repo.List(ctx, ListFilter{Statuses: statuses, Limit: q.Limit, Offset: q.Offset})
	case ScopeInbox:
		return s.inbox(ctx, actor, q)
	}
	return nil, internal.NewValidationFieldError("scope", "scope must be one of mine, inbox, all", internal.ErrCodeValidationFailed)
}

func (s *Service) inbox(ctx context.Context, actor *rbac.Actor, q ListQuery) ([]*Request, error) {
	seen := make(map[string]struct{})
	var out []*Request
	add := func(rows []*Request, check bool) error {
		for _, r := range rows {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			if check {
				status, level := workflow.Normalize(workflow.Status(r.Status), workflow.ExecLevel(r.ExecLevel))
				target, err := s.target(ctx, r, status, level)
				if err != nil {
					return err
				}
				if !rbac.CanAct(actor, target) {
					continue
				}
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
		return nil
	}

	pending, err := s.approvals.Pending(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			ids = append(ids, p.RequestID)
		}
		rows, err := s.repo.List(ctx, ListFilter{IDs: ids})
		if err != nil {
			return nil, err
		}
		if err := add(rows, false); err != nil {
			return nil, err
		}
	}

	var roleStatuses []string
	for _, st := range workflow.AllStatuses() {
		switch st {
		case workflow.StatusPendingHead, workflow.StatusPendingParentHead, workflow.StatusPendingRequesterSignature:
			continue
		}
		if st.IsApprovalStage() && rbac.CanApprove(actor.Caps, st, "") {
			roleStatuses = append(roleStatuses, string(st))
		}
	}
	if len(roleStatuses) > 0 {
		rows, err := s.repo.List(ctx, ListFilter{Statuses: roleStatuses})
		if err != nil {
			return nil, err
		}
		if err := add(rows, true); err != nil {
			return nil, err
		}
	}

	mine, err := s.repo.List(ctx, ListFilter{OwnerID: actor.ID, Statuses: []string{string(workflow.StatusPendingRequesterSignature)}})
	if err != nil {
		return nil, err
	}
	for _, r := range mine {
		if r.RequesterID == actor.ID {
			if err := add([]*Request{r}, false); err != nil {
				return nil, err
			}
		}
	}

	if q.Status != "" {
		filtered := out[:0]
		for _, r := range out {
			if r.Status == q.Status {
				filtered = append(filtered, r)
			}
		}
		out = filtered
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Offset >= len(out) {
		return []*Request{}, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CheckAvailability exposes the combined vehicle and driver check.
func (s *Service) CheckAvailability(ctx context.Context, vehicleID, driverID string, start, end time.Time, excludeRequestID string) (availability.BothResult, error) {
	return s.availability.CheckBoth(ctx, vehicleID, driverID, start, end, excludeRequestID)
}

func (s *Service) load(ctx context.Context, id string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	return found(req, err)
}

// lock reads the request inside a transaction and holds its row lock, so
// concurrent transitions of one request queue here instead of meeting in
// the approval rows.
func (s *Service) lock(txCtx context.Context, id string) (*Request, error) {
	req, err := s.repo.GetForUpdate(txCtx, id)
	return found(req, err)
}

func found(req *Request, err error) (*Request, error) {
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.WorkflowMetadata == nil {
		req.WorkflowMetadata = JSONMap{}
	}
	return req, nil
}

func (s *Service) parentDepartment(ctx context.Context, departmentID string) (string, error) {
	if departmentID == "" {
		return "", nil
	}
	dept, err := s.departments.Get(ctx, departmentID)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			return "", nil
		}
		return "", err
	}
	return dept.ParentDepartmentID, nil
}

func (s *Service) attributes(ctx context.Context, req *Request) (workflow.Attributes, error) {
	parent, err := s.parentDepartment(ctx, req.DepartmentID)
	if err != nil {
		return workflow.Attributes{}, err
	}
	return workflow.Attributes{
		RequesterIsHead:            req.RequesterIsHead,
		HasBudget:                  req.HasBudget,
		NeedsVehicle:               needsVehicle(req),
		HasParentDepartment:        parent != "",
		AwaitingRequesterSignature: req.RequesterSignedAt == nil,
		Signed:                     signedStages(req),
		SkipExecutive:              workflow.ExecLevel(req.ExecLevel) == workflow.ExecLevelAutoApprove,
	}, nil
}

func (s *Service) target(ctx context.Context, req *Request, status workflow.Status, level workflow.ExecLevel) (rbac.Target, error) {
	t := rbac.Target{
		Status:         status,
		ExecLevel:      level,
		RequesterID:    req.RequesterID,
		SubmitterID:    req.SubmittedByUserID,
		DepartmentID:   req.DepartmentID,
		NextApproverID: metaString(req.WorkflowMetadata, MetaNextApproverID),
		Delegated:      metaString(req.WorkflowMetadata, MetaDelegatedStage) == string(status),
	}
	if status == workflow.StatusPendingParentHead {
		parent, err := s.parentDepartment(ctx, req.DepartmentID)
		if err != nil {
			return rbac.Target{}, err
		}
		t.ParentDepartmentID = parent
	}
	return t, nil
}

// execLevel picks the executive signer. Requesters travelling with
// colleagues from other departments need both vice presidents.
func (s *Service) execLevel(req *Request, requester *user.User) workflow.ExecLevel {
	execType := workflow.ExecType(requester.ExecType)
	switch {
	case requester.IsPresident:
		execType = workflow.ExecTypePresident
	case requester.IsVP && execType == workflow.ExecTypeNone:
		execType = workflow.ExecTypeVP
	}

	depts := map[string]struct{}{}
	if req.DepartmentID != "" {
		depts[req.DepartmentID] = struct{}{}
	}
	for _, d := range metaStrings(req.WorkflowMetadata, MetaParticipantDepts) {
		depts[d] = struct{}{}
	}

	return workflow.ExecutiveLevel(workflow.ExecInput{
		RequesterExecType: execType,
		RequesterIsHead:   req.RequesterIsHead,
		RequesterPosition: strings.ToLower(requester.Position),
		TotalBudget:       EffectiveBudget(req),
		International:     req.IsInternational,
		BothVPsRequired:   len(depts) > 1,
	}, s.cfg.PresidentThreshold())
}

// persist writes req over the stored row at expectedStatus/expectedVersion
// and appends the matching history row.
func (s *Service) persist(ctx context.Context, req *Request, expectedStatus string, expectedVersion int, h *History) error {
	if err := s.save(ctx, req, expectedStatus, expectedVersion, h.Action); err != nil {
		return err
	}
	h.ID = uuid.NewString()
	h.RequestID = req.ID
	h.PreviousStatus = expectedStatus
	h.NewStatus = req.Status
	h.CreatedAt = s.now()
	if err := s.repo.InsertHistory(ctx, h); err != nil {
		return err
	}
	metrics.RecordTransition(h.Action, expectedStatus, req.Status)
	return nil
}

func (s *Service) save(ctx context.Context, req *Request, expectedStatus string, expectedVersion int, action string) error {
	req.Version = expectedVersion + 1
	ok, err := s.repo.UpdateConditional(ctx, req, expectedStatus, expectedVersion)
	if err != nil {
		return err
	}
	if !ok {
		metrics.RecordConflict(action)
		return ErrStale
	}
	return nil
}

func (s *Service) event(eventType string, req *Request, actor *rbac.Actor, previous string) *events.RequestEvent {
	e := events.NewRequestEvent(eventType, req.ID, req.RequestNumber)
	if actor != nil {
		e.ActorID = actor.ID
	}
	e.PreviousStatus = previous
	e.NewStatus = req.Status
	return e
}

// publish is best-effort: the transition has already committed.
func (s *Service) publish(ctx context.Context, e *events.RequestEvent) {
	if s.events == nil || e == nil || e.Recipients.Empty() {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish request event",
			"error", err,
			"event_type", e.EventType(),
			"request_id", e.RequestID)
	}
}

func owners(req *Request) events.Recipients {
	ids := []string{req.RequesterID}
	if req.SubmittedByUserID != "" && req.SubmittedByUserID != req.RequesterID {
		ids = append(ids, req.SubmittedByUserID)
	}
	return events.Recipients{UserIDs: ids}
}

// currentRole is who acts next at status; the executive stage narrows to
// the role the level requires.
func currentRole(status workflow.Status, level workflow.ExecLevel) workflow.Role {
	if status == workflow.StatusPendingExec {
		return workflow.ExecApproverRole(level)
	}
	role, _ := workflow.ApproverRole(status)
	return role
}

func roleLabel(req *Request) string {
	role := workflow.Role(req.CurrentApproverRole)
	if role == "" {
		return workflow.Status(req.Status).Label()
	}
	return role.Label()
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	if strings.Contains(existing, note) {
		return existing
	}
	return existing + "\n" + note
}
