package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerr "github.com/restamate/pos-server/internal/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"order_number": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode(t, rec)
	assert.Equal(t, "success", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(7), data["order_number"])
}

func TestWriteServiceErrorMapsTaxonomy(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, svcerr.NotFound("order not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "order not found", resp.Message)
}

func TestWriteServiceErrorCarriesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, svcerr.Validation("unknown menu items").
		WithDetails("missing_ids", []string{"m1"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Details)
	assert.Equal(t, []interface{}{"m1"}, resp.Details["missing_ids"])
}

func TestWriteServiceErrorHidesUnclassifiedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	body := io.NopCloser(strings.NewReader(`{"name":"x","extra":true}`))
	assert.Error(t, DecodeJSON(body, &dst))

	body = io.NopCloser(strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(body, &dst))
	assert.Equal(t, "x", dst.Name)
}
