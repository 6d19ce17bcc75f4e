// Package storage declares the persistence interfaces consumed by the
// application services. Implementations live in the memory and postgres
// subpackages.
package storage

import (
	"context"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/domain/order"
	"github.com/restamate/pos-server/internal/app/domain/user"
)

// OrderFilter narrows ListOrders. Nil/zero fields do not filter. Statuses
// takes precedence over Status when both are set.
type OrderFilter struct {
	Status   *order.Status
	Statuses []order.Status
	ServerID string
	// OldestFirst returns FIFO ticket order; the default is newest-first.
	OldestFirst bool
}

// Matches reports whether o passes the filter.
func (f OrderFilter) Matches(o order.Order) bool {
	if f.ServerID != "" && o.ServerID != f.ServerID {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	return true
}

// OrderStore persists orders and their items. Orders returned by reads are
// hydrated with items and the owning server's name. CreateOrder and
// ReplaceItems are atomic with respect to the order row and its item rows.
type OrderStore interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]order.Order, error)
	// UpdateOrder persists status, table number and total. Items are only
	// changed through ReplaceItems.
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
	// ReplaceItems deletes every existing item of the order and inserts the
	// given ones in a single transaction, updating the cached total.
	ReplaceItems(ctx context.Context, orderID string, items []order.Item, total int64) (order.Order, error)
	// BulkUpdateStatus transitions the given orders and returns how many rows
	// changed.
	BulkUpdateStatus(ctx context.Context, ids []string, status order.Status) (int, error)
	// DeleteOrder hard-deletes the order; item rows go with it via the
	// store's cascade mechanism.
	DeleteOrder(ctx context.Context, id string) error
}

// MenuStore persists catalog entries.
type MenuStore interface {
	CreateMenuItem(ctx context.Context, item menu.Item) (menu.Item, error)
	UpdateMenuItem(ctx context.Context, item menu.Item) (menu.Item, error)
	GetMenuItem(ctx context.Context, id string) (menu.Item, error)
	// GetMenuItems resolves a batch of ids; missing ids are simply absent
	// from the result.
	GetMenuItems(ctx context.Context, ids []string) (map[string]menu.Item, error)
	ListMenuItems(ctx context.Context, includeInactive bool) ([]menu.Item, error)
}

// UserStore persists actor identities.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// CounterStore persists the daily order counter. NextOrderNumber must be a
// single atomic increment-or-reset: it returns 1 the first time it is called
// with a day different from the stored one, and the incremented counter
// otherwise.
type CounterStore interface {
	NextOrderNumber(ctx context.Context, day string) (int, error)
}
