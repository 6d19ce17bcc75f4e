// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/domain/order"
	"github.com/restamate/pos-server/internal/app/domain/user"
	"github.com/restamate/pos-server/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.OrderStore = (*Store)(nil)
var _ storage.MenuStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.CounterStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, status, table_number, total_price, server_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.Number, o.Status, o.TableNumber, o.Total, o.ServerID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return order.Order{}, mapError(err)
	}

	if err := insertItems(ctx, tx, o.ID, o.Items, now); err != nil {
		return order.Order{}, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}
	return s.GetOrder(ctx, o.ID)
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID string, items []order.Item, now time.Time) error {
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, name, quantity, price, notes, station, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, item.ID, orderID, item.MenuItemID, item.Name, item.Quantity, item.Price, item.Notes, item.Station, item.Status, now)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `
	o.id, o.order_number, o.status, o.table_number, o.total_price, o.server_id,
	u.username, o.created_at, o.updated_at
`

func scanOrder(row interface{ Scan(...interface{}) error }) (order.Order, error) {
	var (
		o          order.Order
		table      sql.NullInt64
		serverName sql.NullString
	)
	err := row.Scan(&o.ID, &o.Number, &o.Status, &table, &o.Total, &o.ServerID,
		&serverName, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	if table.Valid {
		t := int(table.Int64)
		o.TableNumber = &t
	}
	o.ServerName = serverName.String
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN users u ON u.id = o.server_id
		WHERE o.id = $1
	`, id)

	o, err := scanOrder(row)
	if err != nil {
		return order.Order{}, mapError(err)
	}

	items, err := s.loadItems(ctx, []string{o.ID})
	if err != nil {
		return order.Order{}, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]order.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN users u ON u.id = o.server_id
	`
	var (
		conds []string
		args  []interface{}
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("o.status = ANY($%d)", len(args)))
	} else if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.ServerID != "" {
		args = append(args, filter.ServerID)
		conds = append(conds, fmt.Sprintf("o.server_id = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	if filter.OldestFirst {
		query += " ORDER BY o.created_at ASC"
	} else {
		query += " ORDER BY o.created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []order.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		o.Items = []order.Item{}
		result = append(result, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		if list, ok := items[result[i].ID]; ok {
			result[i].Items = list
		}
	}
	return result, nil
}

func (s *Store) loadItems(ctx context.Context, orderIDs []string) (map[string][]order.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, menu_item_id, name, quantity, price, notes, station, status, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at ASC
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]order.Item)
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name,
			&item.Quantity, &item.Price, &item.Notes, &item.Station, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	return result, rows.Err()
}

func (s *Store) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, table_number = $3, total_price = $4, updated_at = NOW()
		WHERE id = $1
	`, o.ID, o.Status, o.TableNumber, o.Total)
	if err != nil {
		return order.Order{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, storage.ErrNotFound
	}
	return s.GetOrder(ctx, o.ID)
}

func (s *Store) ReplaceItems(ctx context.Context, orderID string, items []order.Item, total int64) (order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET total_price = $2, updated_at = $3 WHERE id = $1
	`, orderID, total, now)
	if err != nil {
		return order.Order{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return order.Order{}, err
	}
	if err := insertItems(ctx, tx, orderID, items, now); err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) BulkUpdateStatus(ctx context.Context, ids []string, status order.Status) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = ANY($1)
	`, pq.Array(ids), status)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	// Item rows cascade via the order_items FK.
	result, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- MenuStore --------------------------------------------------------------

func (s *Store) CreateMenuItem(ctx context.Context, item menu.Item) (menu.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, name, price, category, station, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.Name, item.Price, item.Category, item.Station, item.Active, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return menu.Item{}, mapError(err)
	}
	return item, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item menu.Item) (menu.Item, error) {
	item.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE menu_items
		SET name = $2, price = $3, category = $4, station = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, item.ID, item.Name, item.Price, item.Category, item.Station, item.Active, item.UpdatedAt)
	if err != nil {
		return menu.Item{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return menu.Item{}, storage.ErrNotFound
	}
	return s.GetMenuItem(ctx, item.ID)
}

const menuColumns = `id, name, price, category, station, active, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...interface{}) error }) (menu.Item, error) {
	var item menu.Item
	err := row.Scan(&item.ID, &item.Name, &item.Price, &item.Category,
		&item.Station, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (menu.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	item, err := scanMenuItem(row)
	if err != nil {
		return menu.Item{}, mapError(err)
	}
	return item, nil
}

func (s *Store) GetMenuItems(ctx context.Context, ids []string) (map[string]menu.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+menuColumns+` FROM menu_items WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]menu.Item, len(ids))
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	return result, rows.Err()
}

func (s *Store) ListMenuItems(ctx context.Context, includeInactive bool) ([]menu.Item, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []menu.Item
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Username, u.PasswordHash, u.Role, u.Active, u.CreatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = $2, password_hash = $3, role = $4, active = $5 WHERE id = $1
	`, u.ID, u.Username, u.PasswordHash, u.Role, u.Active)
	if err != nil {
		return user.User{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

const userColumns = `id, username, password_hash, role, active, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// --- CounterStore -----------------------------------------------------------

// NextOrderNumber advances the daily counter in a single conditional update:
// the counter resets to 1 the first time a request observes a new day and
// increments otherwise. The row is seeded by the schema migration.
func (s *Store) NextOrderNumber(ctx context.Context, day string) (int, error) {
	var counter int
	err := s.db.QueryRowContext(ctx, `
		UPDATE order_counter
		SET counter = CASE WHEN day = $1 THEN counter + 1 ELSE 1 END,
		    day = $1
		WHERE id = 1
		RETURNING counter
	`, day).Scan(&counter)
	if err != nil {
		return 0, mapError(err)
	}
	return counter, nil
}
