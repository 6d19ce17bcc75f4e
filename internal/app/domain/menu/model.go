// Package menu defines the menu catalog entities.
package menu

import "time"

// Station is the preparation area a menu item is routed to.
type Station string

const (
	StationGrill    Station = "grill"
	StationKitchen  Station = "kitchen"
	StationBeverage Station = "beverage"
)

// Stations lists every known preparation station.
var Stations = []Station{StationGrill, StationKitchen, StationBeverage}

// Valid reports whether s is a known station.
func (s Station) Valid() bool {
	for _, known := range Stations {
		if s == known {
			return true
		}
	}
	return false
}

// Item is a catalog entry. Price is in minor currency units (cents). Orders
// capture a price snapshot at creation time, so later edits never affect
// historical orders. Active is a soft-delete flag: inactive items stay
// resolvable for old orders but cannot be ordered.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Category  string    `json:"category"`
	Station   Station   `json:"station"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
