package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvitationNotFound is returned for unknown or already-used invitation
// tokens. It lives here so both the signup and team packages can share it.
var ErrInvitationNotFound = errors.New("invitation not found")

// Role represents a user's role on a creator team.
type Role string

const (
	RoleCreator Role = "creator"
	RoleManager Role = "manager"
	RoleEditor  Role = "editor"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleManager, RoleEditor:
		return true
	}
	return false
}

// User represents a platform user. Managers and editors belong to a creator's
// team via CreatorID; for creators themselves CreatorID is nil.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	CreatorID *uuid.UUID `json:"creator_id,omitempty"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TeamOwner returns the creator this user's data is scoped to:
// the user themselves for creators, otherwise the owning creator.
func (u *User) TeamOwner() uuid.UUID {
	if u.Role == RoleCreator || u.CreatorID == nil {
		return u.ID
	}
	return *u.CreatorID
}

// CanReview reports whether the user may review approval requests.
func (u *User) CanReview() bool {
	return u.Role == RoleCreator || u.Role == RoleManager
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	CreatorID *uuid.UUID `json:"creator_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatorID: u.CreatorID,
		CreatedAt: u.CreatedAt,
	}
}

// Invitation is a pending team-member invitation issued by a creator or manager.
type Invitation struct {
	ID        uuid.UUID  `json:"id"`
	CreatorID uuid.UUID  `json:"creator_id"`
	InvitedBy uuid.UUID  `json:"invited_by"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Token     string     `json:"-"`
	Accepted  bool       `json:"accepted"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
