package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/metrics"
	"github.com/restamate/pos-server/internal/app/domain/order"
	"github.com/restamate/pos-server/internal/app/domain/user"
	menusvc "github.com/restamate/pos-server/internal/app/services/menu"
	"github.com/restamate/pos-server/internal/app/services/numbering"
	"github.com/restamate/pos-server/internal/app/services/orders"
	"github.com/restamate/pos-server/internal/app/services/users"
	"github.com/restamate/pos-server/internal/app/storage/memory"
	"github.com/restamate/pos-server/internal/httputil"
)

type apiFixture struct {
	handler http.Handler
	users   *users.Service

	ownerToken   string
	serverToken  string
	cashierToken string
	grillToken   string

	burgerID string
	soupID   string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	userSvc := users.New(store, nil, "test-secret", time.Hour)
	menuSvc := menusvc.New(store, nil)
	orderSvc := orders.New(store, store, numbering.New(store, nil), nil, nil)

	if err := userSvc.EnsureOwner(ctx, "boss", "owner-pass"); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	owner, ownerToken, err := userSvc.Login(ctx, "boss", "owner-pass")
	if err != nil {
		t.Fatalf("owner login: %v", err)
	}

	token := func(name string, role user.Role) string {
		if _, err := userSvc.Register(ctx, owner, users.RegisterRequest{
			Username: name, Password: "secret1", Role: role,
		}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		_, tok, err := userSvc.Login(ctx, name, "secret1")
		if err != nil {
			t.Fatalf("login %s: %v", name, err)
		}
		return tok
	}

	f := &apiFixture{
		users:        userSvc,
		ownerToken:   ownerToken,
		serverToken:  token("alice", user.RoleServer),
		cashierToken: token("carol", user.RoleCashier),
		grillToken:   token("greg", user.RoleGrillCook),
	}

	burger, err := menuSvc.Create(ctx, owner, menusvc.CreateRequest{Name: "burger", Price: 850, Station: menu.StationGrill})
	if err != nil {
		t.Fatalf("seed burger: %v", err)
	}
	soup, err := menuSvc.Create(ctx, owner, menusvc.CreateRequest{Name: "soup", Price: 550, Station: menu.StationKitchen})
	if err != nil {
		t.Fatalf("seed soup: %v", err)
	}
	f.burgerID = burger.ID
	f.soupID = soup.ID

	f.handler = New(Config{
		Orders: orderSvc,
		Menu:   menuSvc,
		Users:  userSvc,
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp httputil.Response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, resp
}

// decodeData re-marshals the untyped envelope data into dst.
func decodeData(t *testing.T, resp httputil.Response, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-encode data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func (f *apiFixture) createOrder(t *testing.T, token string) order.Order {
	t.Helper()
	rec, resp := f.do(t, http.MethodPost, "/orders", token, map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": f.burgerID, "quantity": 2},
			{"menu_item_id": f.soupID, "quantity": 1},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var o order.Order
	decodeData(t, resp, &o)
	return o
}

func TestLoginAndMe(t *testing.T) {
	f := newAPI(t)

	rec, resp := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "secret1",
	})
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("login: status = %d envelope = %+v", rec.Code, resp)
	}
	var loginData struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	decodeData(t, resp, &loginData)
	if loginData.Token == "" || loginData.User.Username != "alice" {
		t.Fatalf("login data = %+v", loginData)
	}

	rec, resp = f.do(t, http.MethodGet, "/auth/me", loginData.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status = %d", rec.Code)
	}
	var me user.User
	decodeData(t, resp, &me)
	if me.Username != "alice" || me.Role != user.RoleServer {
		t.Fatalf("me = %+v", me)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	f := newAPI(t)

	rec, resp := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized || resp.Status != "error" {
		t.Fatalf("status = %d envelope = %+v", rec.Code, resp)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	f := newAPI(t)

	rec, _ := f.do(t, http.MethodGet, "/orders", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	f := newAPI(t)

	rec, resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("status = %d envelope = %+v", rec.Code, resp)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	f := newAPI(t)

	created := f.createOrder(t, f.serverToken)
	if created.Total != 2250 || created.Status != order.StatusOpen {
		t.Fatalf("created = %+v", created)
	}

	// The grill display sees the ticket, narrowed to grill items.
	rec, resp := f.do(t, http.MethodGet, "/orders/grill", f.grillToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("grill queue: status = %d", rec.Code)
	}
	var queue []order.Order
	decodeData(t, resp, &queue)
	if len(queue) != 1 || len(queue[0].Items) != 1 || queue[0].Items[0].Station != menu.StationGrill {
		t.Fatalf("grill queue = %+v", queue)
	}

	// Server marks it served, cashier checks it out.
	rec, resp = f.do(t, http.MethodPatch, fmt.Sprintf("/orders/%s/served", created.ID), f.serverToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("serve: status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec, resp = f.do(t, http.MethodPatch, fmt.Sprintf("/orders/%s/checkout", created.ID), f.cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var completed order.Order
	decodeData(t, resp, &completed)
	if completed.Status != order.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", completed.Status)
	}

	// Terminal orders reject further transitions.
	rec, _ = f.do(t, http.MethodPatch, fmt.Sprintf("/orders/%s/served", created.ID), f.serverToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("serving a completed order: status = %d, want 400", rec.Code)
	}
}

func TestCreateOrderRoleAndValidation(t *testing.T) {
	f := newAPI(t)

	rec, _ := f.do(t, http.MethodPost, "/orders", f.cashierToken, map[string]interface{}{
		"items": []map[string]interface{}{{"menu_item_id": f.burgerID, "quantity": 1}},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier create: status = %d, want 403", rec.Code)
	}

	rec, resp := f.do(t, http.MethodPost, "/orders", f.serverToken, map[string]interface{}{
		"items": []map[string]interface{}{},
	})
	if rec.Code != http.StatusBadRequest || resp.Status != "error" {
		t.Fatalf("empty items: status = %d envelope = %+v", rec.Code, resp)
	}

	// Unknown body fields are rejected.
	rec, _ = f.do(t, http.MethodPost, "/orders", f.serverToken, map[string]interface{}{
		"items":    []map[string]interface{}{{"menu_item_id": f.burgerID, "quantity": 1}},
		"surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status = %d, want 400", rec.Code)
	}
}

func TestCancelLastRoute(t *testing.T) {
	f := newAPI(t)

	rec, _ := f.do(t, http.MethodDelete, "/orders/last", f.serverToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nothing to cancel: status = %d, want 404", rec.Code)
	}

	created := f.createOrder(t, f.serverToken)
	rec, resp := f.do(t, http.MethodDelete, "/orders/last", f.serverToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel last: status = %d", rec.Code)
	}
	var cancelled order.Order
	decodeData(t, resp, &cancelled)
	if cancelled.ID != created.ID || cancelled.Status != order.StatusCancelled {
		t.Fatalf("cancelled = %+v", cancelled)
	}
}

func TestClearStationRoute(t *testing.T) {
	f := newAPI(t)
	f.createOrder(t, f.serverToken)

	rec, resp := f.do(t, http.MethodDelete, "/orders/grill", f.grillToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear grill: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Station string `json:"station"`
		Count   int    `json:"count"`
	}
	decodeData(t, resp, &result)
	if result.Station != "grill" || result.Count != 1 {
		t.Fatalf("result = %+v", result)
	}

	// The grill cook cannot clear the kitchen.
	rec, _ = f.do(t, http.MethodDelete, "/orders/kitchen", f.grillToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-station clear: status = %d, want 403", rec.Code)
	}
}

func TestMenuManagementIsOwnerOnly(t *testing.T) {
	f := newAPI(t)

	rec, _ := f.do(t, http.MethodPost, "/menu", f.serverToken, map[string]interface{}{
		"name": "fries", "price": 350, "station": "grill",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("server create: status = %d, want 403", rec.Code)
	}

	rec, resp := f.do(t, http.MethodPost, "/menu", f.ownerToken, map[string]interface{}{
		"name": "fries", "price": 350, "station": "grill",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("owner create: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var item menu.Item
	decodeData(t, resp, &item)

	rec, _ = f.do(t, http.MethodDelete, "/menu/"+item.ID, f.ownerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d", rec.Code)
	}

	// The default menu view hides the deactivated item.
	rec, resp = f.do(t, http.MethodGet, "/menu", f.serverToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list menu: status = %d", rec.Code)
	}
	var items []menu.Item
	decodeData(t, resp, &items)
	for _, it := range items {
		if it.ID == item.ID {
			t.Fatalf("deactivated item should be hidden from the default list")
		}
	}
}

func TestRegisterIsOwnerOnly(t *testing.T) {
	f := newAPI(t)

	rec, _ := f.do(t, http.MethodPost, "/auth/register", f.serverToken, map[string]interface{}{
		"username": "mallory", "password": "secret1", "role": "OWNER",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("server register: status = %d, want 403", rec.Code)
	}

	rec, resp := f.do(t, http.MethodPost, "/auth/register", f.ownerToken, map[string]interface{}{
		"username": "kim", "password": "secret1", "role": "KITCHEN_STAFF",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("owner register: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created user.User
	decodeData(t, resp, &created)
	if created.Role != user.RoleKitchenStaff {
		t.Fatalf("created = %+v", created)
	}
}

func TestRequestMetricsUseRouteTemplate(t *testing.T) {
	f := newAPI(t)

	created := f.createOrder(t, f.serverToken)
	rec, _ := f.do(t, http.MethodGet, "/orders/"+created.ID, f.serverToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order: status = %d", rec.Code)
	}

	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var sawTemplate bool
	for _, family := range families {
		if family.GetName() != "pos_http_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() != "path" {
					continue
				}
				// One series per route, never one per order id.
				if strings.Contains(label.GetValue(), created.ID) {
					t.Fatalf("metric path label carries a concrete id: %q", label.GetValue())
				}
				if label.GetValue() == "/orders/{id}" {
					sawTemplate = true
				}
			}
		}
	}
	if !sawTemplate {
		t.Fatalf("expected a pos_http_requests_total series labelled with the route template")
	}
}

func TestErrorDetailsSurfaceInEnvelope(t *testing.T) {
	f := newAPI(t)

	rec, resp := f.do(t, http.MethodPost, "/orders", f.serverToken, map[string]interface{}{
		"items": []map[string]interface{}{{"menu_item_id": "ghost", "quantity": 1}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Details == nil || resp.Details["missing_ids"] == nil {
		t.Fatalf("details = %v, want missing_ids", resp.Details)
	}
}
