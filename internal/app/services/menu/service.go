// Package menu manages the menu catalog.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/domain/user"
	"github.com/restamate/pos-server/internal/app/storage"
	svcerr "github.com/restamate/pos-server/internal/errors"
	"github.com/restamate/pos-server/internal/logging"
)

// Service manages catalog entries. The order engine consumes the same store
// read-side for validation and price snapshots.
type Service struct {
	store storage.MenuStore
	log   *logging.Logger
}

// New constructs a menu service.
func New(store storage.MenuStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("menu")
	}
	return &Service{store: store, log: log}
}

// CreateRequest carries the fields of a new catalog entry.
type CreateRequest struct {
	Name     string       `json:"name"`
	Price    int64        `json:"price"`
	Category string       `json:"category"`
	Station  menu.Station `json:"station"`
}

func (r CreateRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return svcerr.Validation("name is required")
	}
	if r.Price < 0 {
		return svcerr.Validation("price must not be negative")
	}
	if !r.Station.Valid() {
		return svcerr.Validation(fmt.Sprintf("unknown station %q", r.Station))
	}
	return nil
}

// Create adds a catalog entry. Owner only.
func (s *Service) Create(ctx context.Context, actor user.User, req CreateRequest) (menu.Item, error) {
	if !user.Allowed(actor.Role, user.OpManageMenu) {
		return menu.Item{}, svcerr.Forbidden("role not permitted to manage the menu")
	}
	if err := req.validate(); err != nil {
		return menu.Item{}, err
	}

	item, err := s.store.CreateMenuItem(ctx, menu.Item{
		Name:     strings.TrimSpace(req.Name),
		Price:    req.Price,
		Category: req.Category,
		Station:  req.Station,
		Active:   true,
	})
	if err != nil {
		return menu.Item{}, svcerr.Internal("failed to create menu item", err)
	}
	s.log.WithContext(ctx).Infof("menu item %s created", item.ID)
	return item, nil
}

// UpdateRequest carries optional field updates; nil fields are unchanged.
type UpdateRequest struct {
	Name     *string       `json:"name,omitempty"`
	Price    *int64        `json:"price,omitempty"`
	Category *string       `json:"category,omitempty"`
	Station  *menu.Station `json:"station,omitempty"`
	Active   *bool         `json:"active,omitempty"`
}

// Update edits a catalog entry. Owner only. Existing orders keep their price
// snapshots regardless.
func (s *Service) Update(ctx context.Context, actor user.User, id string, req UpdateRequest) (menu.Item, error) {
	if !user.Allowed(actor.Role, user.OpManageMenu) {
		return menu.Item{}, svcerr.Forbidden("role not permitted to manage the menu")
	}

	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return menu.Item{}, svcerr.NotFound("menu item not found")
		}
		return menu.Item{}, svcerr.Internal("failed to load menu item", err)
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return menu.Item{}, svcerr.Validation("name must not be empty")
		}
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return menu.Item{}, svcerr.Validation("price must not be negative")
		}
		item.Price = *req.Price
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Station != nil {
		if !req.Station.Valid() {
			return menu.Item{}, svcerr.Validation(fmt.Sprintf("unknown station %q", *req.Station))
		}
		item.Station = *req.Station
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	updated, err := s.store.UpdateMenuItem(ctx, item)
	if err != nil {
		return menu.Item{}, svcerr.Internal("failed to update menu item", err)
	}
	s.log.WithContext(ctx).Infof("menu item %s updated", id)
	return updated, nil
}

// Deactivate soft-deletes a catalog entry so it can no longer be ordered but
// stays resolvable for historical orders. Owner only.
func (s *Service) Deactivate(ctx context.Context, actor user.User, id string) error {
	active := false
	_, err := s.Update(ctx, actor, id, UpdateRequest{Active: &active})
	return err
}

// Get returns a single catalog entry.
func (s *Service) Get(ctx context.Context, id string) (menu.Item, error) {
	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return menu.Item{}, svcerr.NotFound("menu item not found")
		}
		return menu.Item{}, svcerr.Internal("failed to load menu item", err)
	}
	return item, nil
}

// List returns catalog entries. Inactive entries are only visible to owners.
func (s *Service) List(ctx context.Context, actor user.User, includeInactive bool) ([]menu.Item, error) {
	if !user.Allowed(actor.Role, user.OpReadMenu) {
		return nil, svcerr.Forbidden("role not permitted to read the menu")
	}
	if includeInactive && !user.Allowed(actor.Role, user.OpManageMenu) {
		includeInactive = false
	}
	items, err := s.store.ListMenuItems(ctx, includeInactive)
	if err != nil {
		return nil, svcerr.Internal("failed to list menu items", err)
	}
	if items == nil {
		items = []menu.Item{}
	}
	return items, nil
}
