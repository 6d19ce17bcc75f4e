package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	menusvc "github.com/restamate/pos-server/internal/app/services/menu"
	"github.com/restamate/pos-server/internal/app/services/users"
	svcerr "github.com/restamate/pos-server/internal/errors"
	"github.com/restamate/pos-server/internal/httputil"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, svcerr.Validation("invalid JSON body"))
		return
	}

	u, token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req users.RegisterRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, svcerr.Validation("invalid JSON body"))
		return
	}

	created, err := h.users.Register(r.Context(), u, req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.users.Deactivate(r.Context(), u, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nil)
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	includeInactive := r.URL.Query().Get("all") == "true"
	items, err := h.menu.List(r.Context(), u, includeInactive)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req menusvc.CreateRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, svcerr.Validation("invalid JSON body"))
		return
	}

	item, err := h.menu.Create(r.Context(), u, req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	var req menusvc.UpdateRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteServiceError(w, svcerr.Validation("invalid JSON body"))
		return
	}

	item, err := h.menu.Update(r.Context(), u, mux.Vars(r)["id"], req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) deactivateMenuItem(w http.ResponseWriter, r *http.Request) {
	u, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.menu.Deactivate(r.Context(), u, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nil)
}
