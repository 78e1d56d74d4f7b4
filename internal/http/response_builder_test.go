package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusCreated).Header("X-Test", "1").JSON(map[string]int{"n": 1}).Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Test"))
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
}

func TestResponseBuilder_UnencodableJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(func() {}).Write(w)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestResponseBuilder_HTMLAndRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().BodyHTML([]byte("<p>hi</p>")).Write(w)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<p>hi</p>", w.Body.String())

	w = httptest.NewRecorder()
	NewResponse().Redirect("/wallets").Write(w)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/wallets", w.Header().Get("Location"))
	assert.Empty(t, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusUnprocessableEntity, "invalid amount"},
		{errors.Join(errors.New("delete wallet"), ledger.ErrNotFound), http.StatusNotFound, "not found"},
		{badRequest("invalid limit"), http.StatusBadRequest, "bad request: invalid limit"},
		{errors.New("disk I/O error"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		status := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		msg, _ := errorMessage(tc.err, status)
		assert.Equal(t, tc.msg, msg)
	}
}
