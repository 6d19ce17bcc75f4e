package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/restamate/pos-server/internal/app/domain/menu"
	"github.com/restamate/pos-server/internal/app/services/orders"
	svcerr "github.com/restamate/pos-server/internal/errors"
	"github.com/restamate/pos-server/internal/httputil"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req orders.CreateRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, svcerr.Validation("invalid JSON body"))
		return
	}

	created, err := h.orders.Create(r.Context(), u, req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	filter := orders.ListFilter{
		Status:   r.URL.Query().Get("status"),
		ServerID: r.URL.Query().Get("serverId"),
	}

	list, err := h.orders.List(r.Context(), u, filter)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.orders.ListActive(r.Context(), u)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) listStation(station menu.Station) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		list, err := h.orders.ListByStation(r.Context(), u, station)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, list)
	}
}

func (h *Handler) listCashier(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.orders.ListForCashier(r.Context(), u)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), u, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req orders.UpdateRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, svcerr.Validation("invalid JSON body"))
		return
	}

	updated, err := h.orders.Update(r.Context(), u, mux.Vars(r)["id"], req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) markServed(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.orders.MarkServed(r.Context(), u, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) markDone(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.orders.MarkDone(r.Context(), u, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Checkout(r.Context(), u, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) cancelLast(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.orders.CancelLast(r.Context(), u)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.orders.Delete(r.Context(), u, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) clearStation(station menu.Station) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := actor(w, r)
		if !ok {
			return
		}
		count, err := h.orders.ClearStation(r.Context(), u, station)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"station": station,
			"count":   count,
		})
	}
}
