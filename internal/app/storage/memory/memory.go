// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/domain/order"
	"github.com/restamate/pos-server/internal/app/domain/user"
	"github.com/restamate/pos-server/internal/app/storage"
)

// Store is an in-memory implementation of every storage interface.
type Store struct {
	mu          sync.RWMutex
	seq         int64
	orders      map[string]order.Order
	orderSeq    map[string]int64
	menuItems   map[string]menu.Item
	users       map[string]user.User
	usersByName map[string]string
	counterDay  string
	counter     int
}

var _ storage.OrderStore = (*Store)(nil)
var _ storage.MenuStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.CounterStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		orders:      make(map[string]order.Order),
		orderSeq:    make(map[string]int64),
		menuItems:   make(map[string]menu.Item),
		users:       make(map[string]user.User),
		usersByName: make(map[string]string),
	}
}

func (s *Store) nextSeqLocked() int64 {
	s.seq++
	return s.seq
}

// OrderStore implementation --------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
		if o.Items[i].CreatedAt.IsZero() {
			o.Items[i].CreatedAt = now
		}
	}
	o.ServerName = s.serverNameLocked(o.ServerID)

	s.orders[o.ID] = o
	s.orderSeq[o.ID] = s.nextSeqLocked()
	return cloneOrder(o), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, storage.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, filter storage.OrderFilter) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]order.Order, 0)
	for _, o := range s.orders {
		if filter.Matches(o) {
			result = append(result, cloneOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := s.orderSeq[result[i].ID], s.orderSeq[result[j].ID]
		if filter.OldestFirst {
			return a < b
		}
		return a > b
	})
	return result, nil
}

func (s *Store) UpdateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.ID]
	if !ok {
		return order.Order{}, storage.ErrNotFound
	}
	existing.Status = o.Status
	existing.TableNumber = o.TableNumber
	existing.Total = o.Total
	existing.UpdatedAt = time.Now().UTC()
	s.orders[o.ID] = existing
	return cloneOrder(existing), nil
}

func (s *Store) ReplaceItems(_ context.Context, orderID string, items []order.Item, total int64) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[orderID]
	if !ok {
		return order.Order{}, storage.ErrNotFound
	}
	now := time.Now().UTC()
	replaced := make([]order.Item, len(items))
	copy(replaced, items)
	for i := range replaced {
		if replaced[i].ID == "" {
			replaced[i].ID = uuid.NewString()
		}
		replaced[i].OrderID = orderID
		if replaced[i].CreatedAt.IsZero() {
			replaced[i].CreatedAt = now
		}
	}
	existing.Items = replaced
	existing.Total = total
	existing.UpdatedAt = now
	s.orders[orderID] = existing
	return cloneOrder(existing), nil
}

func (s *Store) BulkUpdateStatus(_ context.Context, ids []string, status order.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now().UTC()
	for _, id := range ids {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		o.Status = status
		o.UpdatedAt = now
		s.orders[id] = o
		count++
	}
	return count, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.orders, id)
	delete(s.orderSeq, id)
	return nil
}

// MenuStore implementation ---------------------------------------------------

func (s *Store) CreateMenuItem(_ context.Context, item menu.Item) (menu.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.menuItems[item.ID] = item
	return item, nil
}

func (s *Store) UpdateMenuItem(_ context.Context, item menu.Item) (menu.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.menuItems[item.ID]
	if !ok {
		return menu.Item{}, storage.ErrNotFound
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	s.menuItems[item.ID] = item
	return item, nil
}

func (s *Store) GetMenuItem(_ context.Context, id string) (menu.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.menuItems[id]
	if !ok {
		return menu.Item{}, storage.ErrNotFound
	}
	return item, nil
}

func (s *Store) GetMenuItems(_ context.Context, ids []string) (map[string]menu.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]menu.Item, len(ids))
	for _, id := range ids {
		if item, ok := s.menuItems[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) ListMenuItems(_ context.Context, includeInactive bool) ([]menu.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]menu.Item, 0, len(s.menuItems))
	for _, item := range s.menuItems {
		if !includeInactive && !item.Active {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByName[u.Username]; taken {
		return user.User{}, storage.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	s.usersByName[u.Username] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.CreatedAt = existing.CreatedAt
	if existing.Username != u.Username {
		if _, taken := s.usersByName[u.Username]; taken {
			return user.User{}, storage.ErrDuplicate
		}
		delete(s.usersByName, existing.Username)
		s.usersByName[u.Username] = u.ID
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// CounterStore implementation ------------------------------------------------

func (s *Store) NextOrderNumber(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counterDay != day {
		s.counterDay = day
		s.counter = 1
	} else {
		s.counter++
	}
	return s.counter, nil
}

func (s *Store) serverNameLocked(serverID string) string {
	if u, ok := s.users[serverID]; ok {
		return u.Username
	}
	return ""
}

func cloneOrder(o order.Order) order.Order {
	items := make([]order.Item, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	if o.TableNumber != nil {
		table := *o.TableNumber
		o.TableNumber = &table
	}
	return o
}
