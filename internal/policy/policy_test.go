package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

func TestRequireAdmin(t *testing.T) {
	admin := &model.User{ID: "a", Role: model.RoleAdmin}
	user := &model.User{ID: "u", Role: model.RoleUser}

	assert.NoError(t, RequireAdmin(admin))
	assert.ErrorIs(t, RequireAdmin(user), model.ErrForbidden)
	assert.ErrorIs(t, RequireAdmin(nil), model.ErrAuthFailure)
	assert.ErrorIs(t, RequireAdmin(&model.User{Role: model.RoleAdmin}), model.ErrAuthFailure)
}

func TestRequireSelfOrAdmin(t *testing.T) {
	admin := &model.User{ID: "a", Role: model.RoleAdmin}
	user := &model.User{ID: "u", Role: model.RoleUser}

	assert.NoError(t, RequireSelfOrAdmin(user, "u"))
	assert.NoError(t, RequireSelfOrAdmin(admin, "u"))
	assert.ErrorIs(t, RequireSelfOrAdmin(user, "someone-else"), model.ErrForbidden)
	assert.ErrorIs(t, RequireSelfOrAdmin(nil, "u"), model.ErrAuthFailure)
}
