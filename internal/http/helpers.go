package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finetrail/internal/core"
	"finetrail/internal/ledger"
	"finetrail/internal/log"
	"finetrail/internal/middleware/security"
)

const maxUserIDLength = 128

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser resolves the acting user from the proxy header, falling back to
// the configured default user, and rejects the request with 401 otherwise.
// Responses carry ledger data and are never cached.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.userID(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing user identity", "")
			return
		}
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).WithUser(userID))
		next(w, r.WithContext(ctx), userID)
	})).ServeHTTP
}

func (s *Server) userID(r *http.Request) (string, bool) {
	id := sanitizeInput(r.Header.Get(s.userHeader))
	if id == "" {
		id = s.defaultUser
	}
	if id == "" || len(id) > maxUserIDLength {
		return "", false
	}
	return id, true
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal failures from clients.
func errorMessage(err error, status int) (msg, field string) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Err.Error(), ve.Field
	}
	switch status {
	case http.StatusNotFound:
		return "not found", ""
	case http.StatusBadRequest:
		return err.Error(), ""
	case http.StatusServiceUnavailable:
		return "service unavailable", ""
	default:
		return "internal error", ""
	}
}

// fail writes err as a JSON error response, logging server side failures.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	msg, field := errorMessage(err, status)
	writeJSONError(w, status, msg, field)
}

func writeJSONError(w http.ResponseWriter, status int, msg, field string) {
	NewResponse().Status(status).JSON(errorBody{Error: msg, Field: field}).Write(w)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid " + key)
	}
	return n, nil
}

// displayCurrency picks the currency used for user wide totals.
func displayCurrency(wallets []core.Wallet) string {
	if len(wallets) > 0 && wallets[0].Currency != "" {
		return wallets[0].Currency
	}
	return "USD"
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal, currency string) string {
			return core.FormatMoney(d, currency)
		},
		"percent": core.FormatPercent,
		"savingsRate": func(t core.DashboardTotals) string {
			if !t.HasIncome() {
				return "n/a"
			}
			return core.FormatPercent(t.SavingsRate.Decimal)
		},
		"day": func(d core.Date) string {
			return d.Format("Mon, Jan 2 2006")
		},
		"shortDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"tags": func(tags []string) string {
			return strings.Join(tags, ", ")
		},
		"walletLabel": func(t core.WalletType) string {
			return t.Label()
		},
	}
}
