// Package httpapi exposes the REST surface and the push-channel endpoint.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/domain/user"
	menusvc "github.com/restamate/pos-server/internal/app/services/menu"
	"github.com/restamate/pos-server/internal/app/services/orders"
	"github.com/restamate/pos-server/internal/app/services/users"
	svcerr "github.com/restamate/pos-server/internal/errors"
	"github.com/restamate/pos-server/internal/httputil"
	"github.com/restamate/pos-server/internal/logging"
	"github.com/restamate/pos-server/internal/middleware"
)

// Handler bundles the HTTP endpoints over the application services.
type Handler struct {
	orders *orders.Service
	menu   *menusvc.Service
	users  *users.Service
	push   http.Handler
	health func() error
	log    *logging.Logger
}

// Config carries the handler's dependencies.
type Config struct {
	Orders *orders.Service
	Menu   *menusvc.Service
	Users  *users.Service
	// Push serves websocket subscriptions; nil disables the endpoint.
	Push http.Handler
	// Health reports readiness of the backing store; nil means always ready.
	Health  func() error
	Metrics http.Handler
	Log     *logging.Logger
}

// New builds the router with all routes and middleware attached.
func New(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	h := &Handler{
		orders: cfg.Orders,
		menu:   cfg.Menu,
		users:  cfg.Users,
		push:   cfg.Push,
		health: cfg.Health,
		log:    log,
	}

	auth := middleware.NewAuth(cfg.Users, log)
	loginLimiter := middleware.NewRateLimiter(1, 5)
	ownerOnly := middleware.RequireRoles(user.RoleOwner)

	r := mux.NewRouter()
	r.Use(middleware.Trace)
	r.Use(func(next http.Handler) http.Handler {
		return middleware.RequestLog(log, next)
	})

	// Unauthenticated surface.
	r.Handle("/auth/login", loginLimiter.Handler(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	// Everything else requires a valid bearer credential.
	authed := r.NewRoute().Subrouter()
	authed.Use(auth.Handler)

	authed.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)
	authed.Handle("/auth/register", ownerOnly(http.HandlerFunc(h.register))).Methods(http.MethodPost)
	authed.Handle("/users/{id}", ownerOnly(http.HandlerFunc(h.deactivateUser))).Methods(http.MethodDelete)

	authed.HandleFunc("/menu", h.listMenu).Methods(http.MethodGet)
	authed.Handle("/menu", ownerOnly(http.HandlerFunc(h.createMenuItem))).Methods(http.MethodPost)
	authed.Handle("/menu/{id}", ownerOnly(http.HandlerFunc(h.updateMenuItem))).Methods(http.MethodPatch)
	authed.Handle("/menu/{id}", ownerOnly(http.HandlerFunc(h.deactivateMenuItem))).Methods(http.MethodDelete)

	// Literal order routes register before the {id} routes so "last",
	// "active" and the station names never match as ids.
	authed.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	authed.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	authed.HandleFunc("/orders/active", h.listActive).Methods(http.MethodGet)
	authed.HandleFunc("/orders/grill", h.listStation(menu.StationGrill)).Methods(http.MethodGet)
	authed.HandleFunc("/orders/kitchen", h.listStation(menu.StationKitchen)).Methods(http.MethodGet)
	authed.HandleFunc("/orders/cashier", h.listCashier).Methods(http.MethodGet)
	authed.HandleFunc("/orders/last", h.cancelLast).Methods(http.MethodDelete)
	authed.HandleFunc("/orders/grill", h.clearStation(menu.StationGrill)).Methods(http.MethodDelete)
	authed.HandleFunc("/orders/kitchen", h.clearStation(menu.StationKitchen)).Methods(http.MethodDelete)
	authed.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	authed.HandleFunc("/orders/{id}", h.updateOrder).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}/served", h.markServed).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}/done", h.markDone).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}/checkout", h.checkout).Methods(http.MethodPatch)
	authed.HandleFunc("/orders/{id}", h.deleteOrder).Methods(http.MethodDelete)

	if h.push != nil {
		authed.Handle("/ws", h.push).Methods(http.MethodGet)
	}

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actor returns the authenticated user; Auth.Handler guarantees presence on
// authed routes.
func actor(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		httputil.WriteServiceError(w, svcerr.Unauthorized("missing credentials"))
	}
	return u, ok
}
