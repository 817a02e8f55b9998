package rbac

import "strings"

// Role groups permissions. Roles are carried on every workflow call instead of
// being read from ambient request state.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Permission represents an atomic capability.
type Permission string

const (
	PermQuotationEdit    Permission = "quotation.edit"
	PermQuotationSend    Permission = "quotation.send"
	PermQuotationDecide  Permission = "quotation.decide"
	PermQuotationInvoice Permission = "quotation.invoice"
	PermQuotationRevise  Permission = "quotation.revise"
	PermRFISubmit        Permission = "rfi.submit"
	PermRFIMessage       Permission = "rfi.message"
	PermRFIOfficial      Permission = "rfi.official"
	PermRFITransition    Permission = "rfi.transition"
	PermAuditView        Permission = "audit.view"
)

// Actor describes who performs a workflow action.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsClient reports whether the actor acts on the client side.
func (a Actor) IsClient() bool { return a.Role == RoleClient }

// ParseRole normalises a role name, returning false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleStaff, RoleClient:
		return role, true
	}
	return "", false
}
