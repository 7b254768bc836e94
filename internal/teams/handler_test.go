package teams

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creatorhub/backend/internal/models"
)

// Managers reach the invite endpoint alongside creators, so the role matrix
// here is what actually gates who may invite whom.
func TestInviteDenied(t *testing.T) {
	cases := []struct {
		name    string
		inviter models.Role
		invitee models.Role
		allowed bool
	}{
		{"creator invites manager", models.RoleCreator, models.RoleManager, true},
		{"creator invites editor", models.RoleCreator, models.RoleEditor, true},
		{"manager invites editor", models.RoleManager, models.RoleEditor, true},
		{"manager invites manager", models.RoleManager, models.RoleManager, false},
		{"editor invites editor", models.RoleEditor, models.RoleEditor, false},
		{"editor invites manager", models.RoleEditor, models.RoleManager, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := inviteDenied(tc.inviter, tc.invitee)
			if tc.allowed {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}
