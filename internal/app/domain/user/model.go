// Package user defines actor identities, roles and the operation permission
// table.
package user

import (
	"time"

	"github.com/restamate/pos-server/internal/app/domain/menu"
)

// Role is the closed set of actor roles. Each user holds exactly one.
type Role string

const (
	RoleOwner        Role = "OWNER"
	RoleServer       Role = "SERVER"
	RoleCashier      Role = "CASHIER"
	RoleGrillCook    Role = "GRILL_COOK"
	RoleKitchenStaff Role = "KITCHEN_STAFF"
)

// Roles lists every known role.
var Roles = []Role{RoleOwner, RoleServer, RoleCashier, RoleGrillCook, RoleKitchenStaff}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// StationRole maps a preparation station to the worker role allowed to view
// and clear it.
func StationRole(station menu.Station) Role {
	switch station {
	case menu.StationGrill:
		return RoleGrillCook
	case menu.StationKitchen:
		return RoleKitchenStaff
	default:
		return RoleOwner
	}
}

// User is an actor identity. Inactive users fail authentication even with a
// valid token.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
