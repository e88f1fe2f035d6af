// Package access decides what an authenticated identity may do.
//
// Any identity may create, edit, delete and render any assessment; there is
// no per-record ownership. Identity management is reserved to administrators.
package access

import (
	"fmt"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

type Action string

const (
	ManageOwnAssessments Action = "manage_own_assessments"
	ManageAllAssessments Action = "manage_all_assessments"
	ManageIdentities     Action = "manage_identities"
)

type Decision bool

const (
	Permit Decision = true
	Deny   Decision = false
)

func (d Decision) String() string {
	if d {
		return "permit"
	}
	return "deny"
}

// Authorize is a pure policy lookup.
func Authorize(who entity.AuthView, action Action) Decision {
	if who.ID == 0 || !who.Role.Valid() {
		return Deny
	}
	switch action {
	case ManageOwnAssessments, ManageAllAssessments:
		return Permit
	case ManageIdentities:
		return Decision(who.Role == entity.RoleAdmin)
	default:
		return Deny
	}
}

// Require turns a Deny into apperr.ErrDenied.
func Require(who entity.AuthView, action Action) error {
	if Authorize(who, action) == Deny {
		return fmt.Errorf("%s: %w", action, apperr.ErrDenied)
	}
	return nil
}

// CheckDelete refuses removing the bootstrap administrator or the last
// remaining administrator. admins is the current number of admin identities.
func CheckDelete(target *entity.User, admins int) error {
	if target.Username == entity.BootstrapUsername {
		return fmt.Errorf("the %q account cannot be deleted: %w", entity.BootstrapUsername, apperr.ErrDenied)
	}
	if target.Role == entity.RoleAdmin && admins <= 1 {
		return fmt.Errorf("cannot delete the last administrator: %w", apperr.ErrDenied)
	}
	return nil
}

// CheckRoleChange refuses demoting the last remaining administrator.
func CheckRoleChange(target *entity.User, newRole entity.Role, admins int) error {
	if target.Role == entity.RoleAdmin && newRole != entity.RoleAdmin && admins <= 1 {
		return fmt.Errorf("cannot demote the last administrator: %w", apperr.ErrDenied)
	}
	return nil
}

// CheckRename refuses renaming the bootstrap administrator, and renaming any
// other identity onto its username. Bootstrap finds the account by name.
func CheckRename(target *entity.User, newName string) error {
	if newName == target.Username {
		return nil
	}
	if target.Username == entity.BootstrapUsername {
		return fmt.Errorf("the %q account cannot be renamed: %w", entity.BootstrapUsername, apperr.ErrDenied)
	}
	if newName == entity.BootstrapUsername {
		return fmt.Errorf("the %q username is reserved: %w", entity.BootstrapUsername, apperr.ErrDenied)
	}
	return nil
}
