package actor

import "errors"

// Role identifies which side of the marketplace an actor acts for.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

var (
	ErrInvalidRole = errors.New("invalid actor role")
	ErrNotAllowed  = errors.New("actor is not allowed to perform this operation")
)

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	switch s {
	case RoleCustomer.String():
		return RoleCustomer, nil
	case RoleShop.String():
		return RoleShop, nil
	case RoleAgent.String():
		return RoleAgent, nil
	case RoleAdmin.String():
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

// Actor is the authenticated party performing an order operation.
// It is passed explicitly into every state-changing service call instead of
// being read from ambient session state.
type Actor struct {
	UserID int64 `json:"userId"`
	Role   Role  `json:"role"`
}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}
