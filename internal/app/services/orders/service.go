// Package orders is the order engine: it validates order composition,
// computes pricing, drives the status state machine, derives station
// membership and announces every persisted transition on the fan-out channel.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/domain/order"
	"github.com/restamate/pos-server/internal/app/domain/user"
	"github.com/restamate/pos-server/internal/app/metrics"
	"github.com/restamate/pos-server/internal/app/storage"
	svcerr "github.com/restamate/pos-server/internal/errors"
	"github.com/restamate/pos-server/internal/logging"
)

// Numbering issues the next human-facing order number.
type Numbering interface {
	Next(ctx context.Context) int
}

// Broadcaster pushes a typed event to every connected station display.
// Delivery is best-effort: implementations never return an error and never
// block the caller.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Service is the order engine. A nil broadcaster disables event fan-out;
// mutations still commit.
type Service struct {
	store     storage.OrderStore
	catalog   storage.MenuStore
	numbering Numbering
	events    Broadcaster
	log       *logging.Logger
}

// New constructs the order engine.
func New(store storage.OrderStore, catalog storage.MenuStore, numbering Numbering, events Broadcaster, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("orders")
	}
	return &Service{store: store, catalog: catalog, numbering: numbering, events: events, log: log}
}

// ItemRequest is one submitted line: a menu item reference, a quantity and
// optional prep notes.
type ItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes,omitempty"`
}

// CreateRequest is the input of Create.
type CreateRequest struct {
	Items       []ItemRequest `json:"items"`
	TableNumber *int          `json:"table_number,omitempty"`
}

// buildItems validates the submitted lines against the catalog and returns
// priced order items carrying name, price and station snapshots.
func (s *Service) buildItems(ctx context.Context, reqs []ItemRequest) ([]order.Item, error) {
	if len(reqs) == 0 {
		return nil, svcerr.Validation("at least one item is required")
	}

	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return nil, svcerr.Validation(fmt.Sprintf("quantity must be positive for menu item %s", req.MenuItemID))
		}
		ids = append(ids, req.MenuItemID)
	}

	resolved, err := s.catalog.GetMenuItems(ctx, ids)
	if err != nil {
		return nil, svcerr.Internal("failed to resolve menu items", err)
	}

	var missing, inactive []string
	items := make([]order.Item, 0, len(reqs))
	for _, req := range reqs {
		entry, ok := resolved[req.MenuItemID]
		if !ok {
			missing = append(missing, req.MenuItemID)
			continue
		}
		if !entry.Active {
			inactive = append(inactive, req.MenuItemID)
			continue
		}
		items = append(items, order.Item{
			MenuItemID: entry.ID,
			Name:       entry.Name,
			Quantity:   req.Quantity,
			Price:      entry.Price,
			Notes:      req.Notes,
			Station:    entry.Station,
			Status:     order.StatusOpen,
		})
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, svcerr.Validation("unknown menu items").WithDetails("missing_ids", missing)
	}
	if len(inactive) > 0 {
		sort.Strings(inactive)
		return nil, svcerr.Validation("menu items no longer available").WithDetails("inactive_ids", inactive)
	}
	return items, nil
}

// Create validates, prices and persists a new order with status OPEN, then
// announces it. Servers only.
func (s *Service) Create(ctx context.Context, actor user.User, req CreateRequest) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpCreateOrder) {
		return order.Order{}, svcerr.Forbidden("only servers can create orders")
	}

	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return order.Order{}, err
	}

	o := order.Order{
		Number:      s.numbering.Next(ctx),
		Status:      order.StatusOpen,
		TableNumber: req.TableNumber,
		Total:       order.ItemTotal(items),
		ServerID:    actor.ID,
		Items:       items,
	}

	created, err := s.store.CreateOrder(ctx, o)
	if err != nil {
		return order.Order{}, svcerr.Internal("failed to persist order", err)
	}

	metrics.IncOrderCreated()
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":     created.ID,
		"order_number": created.Number,
		"total":        created.Total,
	}).Info("order created")

	s.announce(order.EventNew, created)
	return created, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status   string
	ServerID string
}

// List returns matching orders, newest first, hydrated with items and server
// identity.
func (s *Service) List(ctx context.Context, actor user.User, filter ListFilter) ([]order.Order, error) {
	if !user.Allowed(actor.Role, user.OpListOrders) {
		return nil, svcerr.Forbidden("role not permitted to list orders")
	}

	var storeFilter storage.OrderFilter
	if filter.Status != "" {
		status := order.Status(filter.Status)
		if !status.Valid() {
			return nil, svcerr.Validation(fmt.Sprintf("unknown status %q", filter.Status))
		}
		storeFilter.Status = &status
	}
	storeFilter.ServerID = filter.ServerID

	return s.list(ctx, storeFilter)
}

// ListActive returns the actor's own OPEN orders, newest first.
func (s *Service) ListActive(ctx context.Context, actor user.User) ([]order.Order, error) {
	if !user.Allowed(actor.Role, user.OpListActive) {
		return nil, svcerr.Forbidden("only servers have an active order list")
	}
	open := order.StatusOpen
	return s.list(ctx, storage.OrderFilter{Status: &open, ServerID: actor.ID})
}

func (s *Service) list(ctx context.Context, filter storage.OrderFilter) ([]order.Order, error) {
	result, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, svcerr.Internal("failed to list orders", err)
	}
	if result == nil {
		result = []order.Order{}
	}
	return result, nil
}

// Get returns one order by id.
func (s *Service) Get(ctx context.Context, actor user.User, id string) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpGetOrder) {
		return order.Order{}, svcerr.Forbidden("role not permitted to read orders")
	}
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id string) (order.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return order.Order{}, svcerr.NotFound("order not found")
		}
		return order.Order{}, svcerr.Internal("failed to load order", err)
	}
	return o, nil
}

// UpdateRequest carries optional changes; nil fields are unchanged. Items,
// when present, replace the full line list and re-price the order.
type UpdateRequest struct {
	Items       *[]ItemRequest `json:"items,omitempty"`
	Status      *order.Status  `json:"status,omitempty"`
	TableNumber *int           `json:"table_number,omitempty"`
}

// Update edits an OPEN order. Servers only. Item replacement is delete-all,
// re-create in one storage transaction so a failure never leaves the order
// with a partial line list.
func (s *Service) Update(ctx context.Context, actor user.User, id string, req UpdateRequest) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpUpdateOrder) {
		return order.Order{}, svcerr.Forbidden("only servers can update orders")
	}

	o, err := s.get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	if o.Status != order.StatusOpen {
		return order.Order{}, svcerr.InvalidState(fmt.Sprintf("order is %s, only OPEN orders can be updated", o.Status))
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			return order.Order{}, svcerr.Validation(fmt.Sprintf("unknown status %q", *req.Status))
		}
		if !o.Status.CanTransition(*req.Status) {
			return order.Order{}, svcerr.InvalidState(fmt.Sprintf("cannot transition %s -> %s", o.Status, *req.Status))
		}
		o.Status = *req.Status
	}
	if req.TableNumber != nil {
		o.TableNumber = req.TableNumber
	}

	if req.Items != nil {
		items, err := s.buildItems(ctx, *req.Items)
		if err != nil {
			return order.Order{}, err
		}
		o.Total = order.ItemTotal(items)
		if _, err := s.store.ReplaceItems(ctx, o.ID, items, o.Total); err != nil {
			return order.Order{}, svcerr.Internal("failed to replace order items", err)
		}
	}

	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, svcerr.Internal("failed to update order", err)
	}

	s.log.WithContext(ctx).WithField("order_id", id).Info("order updated")
	s.announce(order.EventUpdate, updated)
	return updated, nil
}

// transition moves the order to a new status after the state machine and
// ownership checks, then announces the given event type.
func (s *Service) transition(ctx context.Context, actor user.User, id string, to order.Status, event string, mustOwn bool) (order.Order, error) {
	o, err := s.get(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	if mustOwn && o.ServerID != actor.ID {
		return order.Order{}, svcerr.Forbidden("order belongs to another server")
	}
	if !o.Status.CanTransition(to) {
		return order.Order{}, svcerr.InvalidState(fmt.Sprintf("cannot transition %s -> %s", o.Status, to))
	}

	o.Status = to
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, svcerr.Internal("failed to update order status", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id": id,
		"status":   to,
	}).Info("order status changed")
	s.announce(event, updated)
	return updated, nil
}

// MarkServed transitions an OPEN order owned by the actor to SERVED.
func (s *Service) MarkServed(ctx context.Context, actor user.User, id string) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpMarkServed) {
		return order.Order{}, svcerr.Forbidden("only servers can mark orders served")
	}
	return s.transition(ctx, actor, id, order.StatusServed, order.EventServed, true)
}

// MarkDone transitions an OPEN order owned by the actor to DONE. This is the
// alternate terminal path used by deployments without a cashier checkout.
func (s *Service) MarkDone(ctx context.Context, actor user.User, id string) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpMarkDone) {
		return order.Order{}, svcerr.Forbidden("only servers can mark orders done")
	}
	return s.transition(ctx, actor, id, order.StatusDone, order.EventDone, true)
}

// Checkout completes an OPEN or SERVED order. Cashier or owner.
func (s *Service) Checkout(ctx context.Context, actor user.User, id string) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpCheckout) {
		return order.Order{}, svcerr.Forbidden("only cashiers can check orders out")
	}
	o, err := s.transition(ctx, actor, id, order.StatusCompleted, order.EventCompleted, false)
	if err == nil {
		metrics.IncOrderCompleted()
	}
	return o, err
}

// CancelLast cancels the actor's most recently created OPEN order. The order
// stays in the store as an audit trail.
func (s *Service) CancelLast(ctx context.Context, actor user.User) (order.Order, error) {
	if !user.Allowed(actor.Role, user.OpCancelLastOrder) {
		return order.Order{}, svcerr.Forbidden("only servers can cancel orders")
	}

	open := order.StatusOpen
	candidates, err := s.store.ListOrders(ctx, storage.OrderFilter{Status: &open, ServerID: actor.ID})
	if err != nil {
		return order.Order{}, svcerr.Internal("failed to list orders", err)
	}
	if len(candidates) == 0 {
		return order.Order{}, svcerr.NotFound("no open orders to cancel")
	}

	return s.transition(ctx, actor, candidates[0].ID, order.StatusCancelled, order.EventCancel, true)
}

// Delete hard-deletes an order owned by the actor; items cascade at the
// storage layer. Any status is deletable.
func (s *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if !user.Allowed(actor.Role, user.OpDeleteOrder) {
		return svcerr.Forbidden("only servers can delete orders")
	}

	o, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if o.ServerID != actor.ID {
		return svcerr.Forbidden("order belongs to another server")
	}

	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return svcerr.Internal("failed to delete order", err)
	}

	s.log.WithContext(ctx).WithField("order_id", id).Info("order deleted")
	s.announce(order.EventDelete, map[string]interface{}{
		"id":           o.ID,
		"order_number": o.Number,
	})
	return nil
}

var stationListOps = map[menu.Station]user.Operation{
	menu.StationGrill:   user.OpListGrill,
	menu.StationKitchen: user.OpListKitchen,
}

var stationClearOps = map[menu.Station]user.Operation{
	menu.StationGrill:   user.OpClearGrill,
	menu.StationKitchen: user.OpClearKitchen,
}

// ListByStation returns OPEN orders containing at least one of the station's
// items, oldest first, with each order's line list narrowed to that station's
// items. Matching station workers and owners only.
func (s *Service) ListByStation(ctx context.Context, actor user.User, station menu.Station) ([]order.Order, error) {
	op, ok := stationListOps[station]
	if !ok {
		return nil, svcerr.Validation(fmt.Sprintf("unknown station %q", station))
	}
	if !user.Allowed(actor.Role, op) {
		return nil, svcerr.Forbidden("role not permitted to view this station")
	}

	tickets, err := s.openByStation(ctx, station)
	if err != nil {
		return nil, err
	}
	result := make([]order.Order, 0, len(tickets))
	for _, o := range tickets {
		result = append(result, o.FilterStation(station))
	}
	return result, nil
}

// openByStation returns full (unfiltered) OPEN orders with at least one item
// routed to the station, oldest first.
func (s *Service) openByStation(ctx context.Context, station menu.Station) ([]order.Order, error) {
	open := order.StatusOpen
	all, err := s.store.ListOrders(ctx, storage.OrderFilter{Status: &open, OldestFirst: true})
	if err != nil {
		return nil, svcerr.Internal("failed to list orders", err)
	}
	var result []order.Order
	for _, o := range all {
		if o.HasStation(station) {
			result = append(result, o)
		}
	}
	return result, nil
}

// ListForCashier returns OPEN and SERVED orders, oldest first.
func (s *Service) ListForCashier(ctx context.Context, actor user.User) ([]order.Order, error) {
	if !user.Allowed(actor.Role, user.OpListCashier) {
		return nil, svcerr.Forbidden("role not permitted to view the cashier queue")
	}
	return s.list(ctx, storage.OrderFilter{
		Statuses:    []order.Status{order.StatusOpen, order.StatusServed},
		OldestFirst: true,
	})
}

// ClearStation clears a station's ticket queue and announces it. The two
// stations deliberately keep the two observed semantics: the grill variant
// bulk-completes its OPEN orders in the store, while the kitchen variant is a
// broadcast-only signal leaving order state untouched (displays archive
// locally and refetch).
func (s *Service) ClearStation(ctx context.Context, actor user.User, station menu.Station) (int, error) {
	op, ok := stationClearOps[station]
	if !ok {
		return 0, svcerr.Validation(fmt.Sprintf("unknown station %q", station))
	}
	if !user.Allowed(actor.Role, op) {
		return 0, svcerr.Forbidden("role not permitted to clear this station")
	}

	affected, err := s.openByStation(ctx, station)
	if err != nil {
		return 0, err
	}
	count := len(affected)

	if station == menu.StationGrill {
		ids := make([]string, 0, count)
		for _, o := range affected {
			ids = append(ids, o.ID)
		}
		count, err = s.store.BulkUpdateStatus(ctx, ids, order.StatusCompleted)
		if err != nil {
			return 0, svcerr.Internal("failed to complete station orders", err)
		}
	}

	event := order.EventKitchenClear
	if station == menu.StationGrill {
		event = order.EventGrillClear
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"station": station,
		"count":   count,
	}).Info("station cleared")
	s.announce(event, order.ClearSignal{Station: string(station), Count: count})
	return count, nil
}

// AnnounceDayReset tells every connected display that the business day rolled
// over. Order numbering resets lazily on the next numbered order.
func (s *Service) AnnounceDayReset(day time.Time) {
	s.announce(order.EventDayReset, map[string]interface{}{
		"date": day.Format("2006-01-02"),
	})
}

// announce pushes an event to the fan-out channel. Announcing is best-effort
// and must never fail the mutation that already committed: a nil channel is
// tolerated and implementations swallow delivery errors.
func (s *Service) announce(eventType string, data interface{}) {
	if s.events == nil {
		s.log.WithField("event", eventType).Debug("no fan-out channel attached, event dropped")
		return
	}
	s.events.Broadcast(eventType, data)
}
