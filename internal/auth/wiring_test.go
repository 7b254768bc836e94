package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/teams"
)

// The teams repository must keep satisfying the invitation store that
// invite-based registration consumes. auth cannot import teams directly,
// so the wiring is asserted here.
var _ auth.InvitationStore = (*teams.Repository)(nil)

func TestInvitationNotFoundSentinelShared(t *testing.T) {
	// Registration matches on the models sentinel; the teams repository
	// must return that same error for unknown tokens.
	assert.ErrorIs(t, teams.ErrInvitationNotFound, models.ErrInvitationNotFound)
}
