package lifecycle

import (
	"github.com/prototrack/prototrack/pkg/model"
)

// CanAccess is the single predicate gating viewing, transitioning,
// exporting, and row-toggling a protocol: the caller holds the
// admin-panel capability, created the protocol, belongs to its
// destination department, or is its destination user.
func CanAccess(user *model.User, admin bool, protocol *model.Protocol) bool {
	if admin {
		return true
	}
	if protocol.CreatedByID == user.ID {
		return true
	}
	if user.DepartmentID != nil && protocol.DestinationDepartmentID == *user.DepartmentID {
		return true
	}
	if protocol.DestinationUserID != nil && *protocol.DestinationUserID == user.ID {
		return true
	}
	return false
}
