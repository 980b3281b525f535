package libtrack

// Access guard: pure decision functions over current counts. These are
// advisory gates for presentation-layer feedback; the directory re-checks the
// same counts inside the mutating transaction so a check never races its
// write.

// CanDemote reports whether a role change is permitted. Demoting the last
// administrator is the only forbidden transition.
func CanDemote(currentRole, newRole Role, adminCount int) bool {
	if currentRole == RoleAdministrator && newRole != RoleAdministrator && adminCount <= 1 {
		return false
	}
	return true
}

// CanDeleteUser decides whether a user may be deleted, applying the
// guardrails in precedence order: self-deletion, last administrator, active
// loans. A nil result permits the deletion.
func CanDeleteUser(targetIsSelf bool, targetRole Role, adminCount, activeLoanCount int) error {
	if targetIsSelf {
		return ErrSelfDeleteForbidden
	}
	if targetRole == RoleAdministrator && adminCount <= 1 {
		return ErrLastAdminForbidden
	}
	if activeLoanCount > 0 {
		return &ActiveLoansError{Count: activeLoanCount}
	}
	return nil
}
