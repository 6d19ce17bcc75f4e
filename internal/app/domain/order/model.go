// Package order defines the order aggregate and its status state machine.
package order

import (
	"time"

	"github.com/restamate/pos-server/internal/app/domain/menu"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusServed    Status = "SERVED"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// transitions enumerates every permitted status edge. DONE, CANCELLED and
// COMPLETED are terminal.
var transitions = map[Status][]Status{
	StatusOpen:   {StatusServed, StatusDone, StatusCancelled, StatusCompleted},
	StatusServed: {StatusCompleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusServed, StatusDone, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the edge s -> to is permitted.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is a line within an order. Name, Price and Station are snapshots of
// the referenced menu item taken at creation time. Status is persisted but
// never transitioned independently of the parent order; it is reserved for
// per-item prep tracking.
type Item struct {
	ID         string       `json:"id"`
	OrderID    string       `json:"order_id"`
	MenuItemID string       `json:"menu_item_id"`
	Name       string       `json:"name"`
	Quantity   int          `json:"quantity"`
	Price      int64        `json:"price"`
	Notes      string       `json:"notes,omitempty"`
	Station    menu.Station `json:"station"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Order is the aggregate root of a single customer check. Number is scoped to
// the calendar day and not globally unique. TableNumber nil means takeaway.
// Total is derived and cached: it always equals the sum of item price ×
// quantity.
type Order struct {
	ID          string    `json:"id"`
	Number      int       `json:"order_number"`
	Status      Status    `json:"status"`
	TableNumber *int      `json:"table_number,omitempty"`
	Total       int64     `json:"total_price"`
	ServerID    string    `json:"server_id"`
	ServerName  string    `json:"server_name,omitempty"`
	Items       []Item    `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stations returns the set of stations referenced by the order's items.
func (o Order) Stations() []menu.Station {
	seen := make(map[menu.Station]bool, 2)
	var out []menu.Station
	for _, item := range o.Items {
		if !seen[item.Station] {
			seen[item.Station] = true
			out = append(out, item.Station)
		}
	}
	return out
}

// HasStation reports whether at least one item routes to the given station.
func (o Order) HasStation(station menu.Station) bool {
	for _, item := range o.Items {
		if item.Station == station {
			return true
		}
	}
	return false
}

// FilterStation returns a copy of the order with the item list narrowed to
// the given station's items. This is the station "ticket" view: an order with
// mixed-station items appears, abbreviated, in each relevant station's queue.
func (o Order) FilterStation(station menu.Station) Order {
	filtered := make([]Item, 0, len(o.Items))
	for _, item := range o.Items {
		if item.Station == station {
			filtered = append(filtered, item)
		}
	}
	o.Items = filtered
	return o
}

// ItemTotal computes the sum of price × quantity over items.
func ItemTotal(items []Item) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
