package rbac

import (
	"strings"

	"github.com/frahmantamala/travel-approval/internal/workflow"
)

// Flags are the role columns of a user row, as the directory returns them.
type Flags struct {
	Role          string
	IsHead        bool
	IsAdmin       bool
	IsComptroller bool
	IsHR          bool
	IsExec        bool
	IsVP          bool
	IsPresident   bool
	SuperAdmin    bool
	ExecType      workflow.ExecType
}

// Capabilities is the typed role set an actor holds.
type Capabilities uint16

var roleBits = map[workflow.Role]Capabilities{
	workflow.RoleRequester:   1 << 0,
	workflow.RoleHead:        1 << 1,
	workflow.RoleAdmin:       1 << 2,
	workflow.RoleComptroller: 1 << 3,
	workflow.RoleHR:          1 << 4,
	workflow.RoleVP:          1 << 5,
	workflow.RolePresident:   1 << 6,
	workflow.RoleExec:        1 << 7,
}

func (c Capabilities) Has(r workflow.Role) bool {
	bit, ok := roleBits[r]
	return ok && c&bit != 0
}

func (c Capabilities) With(roles ...workflow.Role) Capabilities {
	for _, r := range roles {
		c |= roleBits[r]
	}
	return c
}

// IsApprover reports whether c holds any role beyond requester.
func (c Capabilities) IsApprover() bool {
	return c&^roleBits[workflow.RoleRequester] != 0
}

func (c Capabilities) Roles() []workflow.Role {
	var out []workflow.Role
	for _, r := range []workflow.Role{
		workflow.RoleRequester, workflow.RoleHead, workflow.RoleAdmin, workflow.RoleComptroller,
		workflow.RoleHR, workflow.RoleVP, workflow.RolePresident, workflow.RoleExec,
	} {
		if c.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Actor is an authenticated user with resolved capabilities.
type Actor struct {
	ID           string
	Email        string
	Name         string
	DepartmentID string
	Position     string
	Flags        Flags
	Caps         Capabilities
}

func (a *Actor) Has(r workflow.Role) bool {
	return a != nil && a.Caps.Has(r)
}

func (a *Actor) IsSuperAdmin() bool {
	return a != nil && IsSuperAdmin(&a.Flags)
}

// Resolver turns flags into capabilities. Admin e-mails listed in config
// are granted the admin role regardless of their flags.
type Resolver struct {
	adminEmails map[string]struct{}
}

func NewResolver(adminEmails []string) *Resolver {
	set := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &Resolver{adminEmails: set}
}

// Resolve fails closed: nil flags or an empty user id yield no capabilities.
func (r *Resolver) Resolve(userID, email string, f *Flags) Capabilities {
	if f == nil || userID == "" {
		return 0
	}
	caps := Capabilities(0).With(workflow.RoleRequester)
	role := strings.ToLower(f.Role)

	if f.IsHead || role == "head" {
		caps = caps.With(workflow.RoleHead)
	}
	if f.IsAdmin || role == "admin" || r.allowListed(email) {
		caps = caps.With(workflow.RoleAdmin)
	}
	if f.IsComptroller || role == "comptroller" {
		caps = caps.With(workflow.RoleComptroller)
	}
	if f.IsHR || role == "hr" {
		caps = caps.With(workflow.RoleHR)
	}
	if f.IsVP || f.ExecType == workflow.ExecTypeVP {
		caps = caps.With(workflow.RoleVP, workflow.RoleExec)
	}
	if f.IsPresident || f.ExecType == workflow.ExecTypePresident {
		caps = caps.With(workflow.RolePresident, workflow.RoleExec)
	}
	if f.IsExec || role == "exec" {
		caps = caps.With(workflow.RoleExec)
	}
	return caps
}

func (r *Resolver) allowListed(email string) bool {
	if r == nil || email == "" {
		return false
	}
	_, ok := r.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// IsSuperAdmin requires the admin flag, the admin role and the super admin bit together.
func IsSuperAdmin(f *Flags) bool {
	return f != nil && f.IsAdmin && strings.EqualFold(f.Role, "admin") && f.SuperAdmin
}
