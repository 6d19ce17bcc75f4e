package order

// Event type identifiers pushed to station displays. Every persisted state
// transition is announced with one of these in a {type, data} envelope.
const (
	EventNew       = "order:new"
	EventUpdate    = "order:update"
	EventCancel    = "order:cancel"
	EventServed    = "order:served"
	EventDone      = "order:done"
	EventCompleted = "order:completed"
	EventDelete    = "order:delete"

	EventGrillClear   = "grill:clear"
	EventKitchenClear = "kitchen:clear"
	EventDayReset     = "day:reset"
)

// ClearSignal is the payload of a station clear event.
type ClearSignal struct {
	Station string `json:"station"`
	Count   int    `json:"count"`
}
