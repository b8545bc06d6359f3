// Package policy holds the role checks evaluated before privileged
// operations. Every function is a pure predicate over the acting identity.
package policy

import (
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// RequireAuthenticated fails with model.ErrAuthFailure when there is no
// acting identity.
func RequireAuthenticated(actor *model.User) error {
	if actor == nil || actor.ID == "" {
		return fmt.Errorf("%w: login required", model.ErrAuthFailure)
	}
	return nil
}

// RequireAdmin fails with model.ErrForbidden unless actor holds the admin
// role.
func RequireAdmin(actor *model.User) error {
	if err := RequireAuthenticated(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin role required", model.ErrForbidden)
	}
	return nil
}

// RequireSelfOrAdmin fails with model.ErrForbidden unless actor is the owner
// of the resource or an admin.
func RequireSelfOrAdmin(actor *model.User, ownerID string) error {
	if err := RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.ID != ownerID && !actor.IsAdmin() {
		return fmt.Errorf("%w: only the account owner or an admin may do this", model.ErrForbidden)
	}
	return nil
}
