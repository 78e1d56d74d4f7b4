package http

import (
	"bytes"
	"net/http"

	"finetrail/internal/core"
	"finetrail/internal/export"
	"finetrail/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}

// parseBody reads a JSON or form body.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := s.svc.Dashboard(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Wallets

func (s *Server) handleAPIListWallets(w http.ResponseWriter, r *http.Request, userID string) {
	views, err := s.svc.Wallets(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPICreateWallet(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := parseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := decodeWallet(p)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.svc.CreateWallet(r.Context(), userID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAPIDeleteWallet(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.DeleteWallet(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories

// handleAPIListCategories accepts ?type=income|expense.
func (s *Server) handleAPIListCategories(w http.ResponseWriter, r *http.Request, userID string) {
	views, err := s.svc.Categories(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	switch typ := core.TransactionType(r.URL.Query().Get("type")); {
	case typ == "":
	case !typ.Valid():
		fail(w, r, invalidField("type", core.ErrInvalidType))
		return
	default:
		income, expense := core.SplitByType(views)
		views = expense
		if typ == core.Income {
			views = income
		}
	}
	if views == nil {
		views = []core.CategoryView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPICreateCategory(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := parseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.svc.CreateCategory(r.Context(), userID, decodeCategory(p))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAPIDeleteCategory(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.DeleteCategory(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Budgets

func (s *Server) handleAPIListBudgets(w http.ResponseWriter, r *http.Request, userID string) {
	views, err := s.svc.Budgets(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPICreateBudget(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := parseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := decodeBudget(p)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.svc.CreateBudget(r.Context(), userID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAPIDeleteBudget(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.DeleteBudget(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transactions

// handleAPIListTransactions returns at most ?limit= transactions, newest
// first, HistoryLimit by default and all of them for limit=0. With
// ?group=day the result is bucketed by calendar day.
func (s *Server) handleAPIListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit", core.HistoryLimit)
	if err != nil {
		fail(w, r, err)
		return
	}
	views, err := s.svc.TransactionViews(r.Context(), userID, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	switch r.URL.Query().Get("group") {
	case "":
		writeJSON(w, http.StatusOK, views)
	case "day":
		groups := core.GroupByDay(views)
		if groups == nil {
			groups = []core.DayGroup{}
		}
		writeJSON(w, http.StatusOK, groups)
	default:
		fail(w, r, badRequest("group must be day"))
	}
}

func (s *Server) handleAPICreateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := parseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := decodeTransaction(p, s.now())
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.svc.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleAPIUpdateTransaction replaces every editable field; omitted fields
// are cleared, a missing date means now.
func (s *Server) handleAPIUpdateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := parseBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	in, err := decodeTransaction(p, s.now())
	if err != nil {
		fail(w, r, err)
		return
	}
	in.ID = r.PathValue("id")
	updated, err := s.svc.UpdateTransaction(r.Context(), userID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAPIDeleteTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.DeleteTransaction(r.Context(), userID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIExportTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	snap, err := s.svc.Snapshot(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	n, err := export.Write(&buf, snap)
	if err != nil {
		fail(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transactions exported",
		log.FieldOperation, log.OpExport, log.FieldCount, n)

	NewResponse().
		Header("Content-Disposition", `attachment; filename="`+export.Filename(userID, s.now())+`"`).
		Body(buf.Bytes(), "text/csv; charset=utf-8").
		Write(w)
}
