package rbac

import (
	"fmt"

	"github.com/labdesk/labdesk/internal/shared"
)

var grants = map[Role]map[Permission]struct{}{
	RoleAdmin: set(
		PermQuotationEdit, PermQuotationSend, PermQuotationDecide, PermQuotationInvoice, PermQuotationRevise,
		PermRFISubmit, PermRFIMessage, PermRFIOfficial, PermRFITransition,
		PermAuditView,
	),
	RoleStaff: set(
		PermQuotationEdit, PermQuotationSend, PermQuotationDecide, PermQuotationInvoice, PermQuotationRevise,
		PermRFISubmit, PermRFIMessage, PermRFIOfficial, PermRFITransition,
		PermAuditView,
	),
	RoleClient: set(
		PermQuotationDecide,
		PermRFISubmit, PermRFIMessage,
	),
}

func set(perms ...Permission) map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}

// Can reports whether the role grants perm.
func Can(role Role, perm Permission) bool {
	_, ok := grants[role][perm]
	return ok
}

// Require returns a forbidden error when actor lacks perm.
func Require(actor Actor, perm Permission) error {
	if actor.ID == "" {
		return shared.E(shared.KindForbidden, string(perm), "actor identity required")
	}
	if !Can(actor.Role, perm) {
		return &shared.Error{
			Kind:    shared.KindForbidden,
			Op:      string(perm),
			Message: fmt.Sprintf("role %q may not perform %s", actor.Role, perm),
		}
	}
	return nil
}
