package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"finetrail/internal/core"
	"finetrail/internal/log"
)

var errTemplatesUnavailable = errors.New("templates unavailable")

// pageData is the root value of every page template.
type pageData struct {
	Title    string
	Active   string
	UserID   string
	Currency string
	Today    string
	Error    string
	Field    string
	Data     any
}

type pageRoute struct {
	name  string
	title string
	path  string
	load  func(s *Server, ctx context.Context, userID string) (any, string, error)
}

type (
	dashboardPage struct {
		View core.DashboardView
	}

	walletsPage struct {
		Wallets []core.WalletView
		Types   []core.WalletType
	}

	categoriesPage struct {
		Income  []core.CategoryView
		Expense []core.CategoryView
	}

	budgetsPage struct {
		Budgets    []core.BudgetView
		Categories []core.Category
	}

	transactionsPage struct {
		Days       []core.DayGroup
		Wallets    []core.Wallet
		Categories []core.Category
	}
)

var (
	dashboardRoute = pageRoute{name: "dashboard", title: "Dashboard", path: "/", load: loadDashboard}
	walletsRoute   = pageRoute{name: "wallets", title: "Wallets", path: "/wallets", load: loadWallets}
	categoryRoute  = pageRoute{name: "categories", title: "Categories", path: "/categories", load: loadCategories}
	budgetsRoute   = pageRoute{name: "budgets", title: "Budgets", path: "/budgets", load: loadBudgets}
	txRoute        = pageRoute{name: "transactions", title: "Transactions", path: "/transactions", load: loadTransactions}
)

func loadDashboard(s *Server, ctx context.Context, userID string) (any, string, error) {
	snap, err := s.svc.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	view, err := core.BuildDashboard(snap)
	if err != nil {
		return nil, "", err
	}
	return dashboardPage{View: view}, displayCurrency(snap.Wallets), nil
}

func loadWallets(s *Server, ctx context.Context, userID string) (any, string, error) {
	snap, err := s.svc.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	views, err := core.BuildWalletViews(snap)
	if err != nil {
		return nil, "", err
	}
	return walletsPage{
		Wallets: views,
		Types:   []core.WalletType{core.Cash, core.Bank, core.CreditCard, core.Crypto},
	}, displayCurrency(snap.Wallets), nil
}

func loadCategories(s *Server, ctx context.Context, userID string) (any, string, error) {
	snap, err := s.svc.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	views, err := core.BuildCategoryViews(snap)
	if err != nil {
		return nil, "", err
	}
	income, expense := core.SplitByType(views)
	return categoriesPage{Income: income, Expense: expense}, displayCurrency(snap.Wallets), nil
}

func loadBudgets(s *Server, ctx context.Context, userID string) (any, string, error) {
	snap, err := s.svc.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	views, err := core.BuildBudgetViews(snap)
	if err != nil {
		return nil, "", err
	}
	var expense []core.Category
	for _, c := range snap.Categories {
		if c.Type == core.Expense {
			expense = append(expense, c)
		}
	}
	return budgetsPage{Budgets: views, Categories: expense}, displayCurrency(snap.Wallets), nil
}

func loadTransactions(s *Server, ctx context.Context, userID string) (any, string, error) {
	snap, err := s.svc.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return transactionsPage{
		Days:       core.GroupByDay(core.BuildTransactionViews(snap, core.HistoryLimit)),
		Wallets:    snap.Wallets,
		Categories: snap.Categories,
	}, displayCurrency(snap.Wallets), nil
}

// renderPage loads and renders route. formErr, when set, is shown above the
// forms and the page is answered with its status.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, userID string, route pageRoute, formErr error) {
	ctx := r.Context()
	data, currency, err := route.load(s, ctx, userID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	page := pageData{
		Title:    route.title,
		Active:   route.name,
		UserID:   userID,
		Currency: currency,
		Today:    core.DateOf(s.now()).String(),
		Data:     data,
	}
	status := http.StatusOK
	if formErr != nil {
		status = statusFor(formErr)
		page.Error, page.Field = errorMessage(formErr, status)
	}

	body, err := s.execute(route.name, page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	NewResponse().Status(status).BodyHTML(body).Write(w)
}

func (s *Server) execute(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesUnavailable
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderError answers a failed page load as plain text.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Page rendering failed",
			log.FieldError, err, log.FieldPath, r.URL.Path, log.FieldOperation, log.OpRender)
	}
	msg, _ := errorMessage(err, status)
	http.Error(w, msg, status)
}

// afterForm redirects back to route on success and re-renders it with the
// error otherwise.
func (s *Server) afterForm(w http.ResponseWriter, r *http.Request, userID string, route pageRoute, err error) {
	if err != nil && statusFor(err) < http.StatusInternalServerError {
		s.renderPage(w, r, userID, route, err)
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	NewResponse().Redirect(route.path).Write(w)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request, userID string) {
	s.renderPage(w, r, userID, dashboardRoute, nil)
}

func (s *Server) handleWalletsPage(w http.ResponseWriter, r *http.Request, userID string) {
	s.renderPage(w, r, userID, walletsRoute, nil)
}

func (s *Server) handleWalletForm(w http.ResponseWriter, r *http.Request, userID string) {
	err := func() error {
		p, err := parseBody(w, r)
		if err != nil {
			return err
		}
		in, err := decodeWallet(p)
		if err != nil {
			return err
		}
		_, err = s.svc.CreateWallet(r.Context(), userID, in)
		return err
	}()
	s.afterForm(w, r, userID, walletsRoute, err)
}

func (s *Server) handleWalletDeleteForm(w http.ResponseWriter, r *http.Request, userID string) {
	s.afterForm(w, r, userID, walletsRoute, s.svc.DeleteWallet(r.Context(), userID, r.PathValue("id")))
}

func (s *Server) handleCategoriesPage(w http.ResponseWriter, r *http.Request, userID string) {
	s.renderPage(w, r, userID, categoryRoute, nil)
}

func (s *Server) handleCategoryForm(w http.ResponseWriter, r *http.Request, userID string) {
	err := func() error {
		p, err := parseBody(w, r)
		if err != nil {
			return err
		}
		_, err = s.svc.CreateCategory(r.Context(), userID, decodeCategory(p))
		return err
	}()
	s.afterForm(w, r, userID, categoryRoute, err)
}

func (s *Server) handleCategoryDeleteForm(w http.ResponseWriter, r *http.Request, userID string) {
	s.afterForm(w, r, userID, categoryRoute, s.svc.DeleteCategory(r.Context(), userID, r.PathValue("id")))
}

func (s *Server) handleBudgetsPage(w http.ResponseWriter, r *http.Request, userID string) {
	s.renderPage(w, r, userID, budgetsRoute, nil)
}

func (s *Server) handleBudgetForm(w http.ResponseWriter, r *http.Request, userID string) {
	err := func() error {
		p, err := parseBody(w, r)
		if err != nil {
			return err
		}
		in, err := decodeBudget(p)
		if err != nil {
			return err
		}
		_, err = s.svc.CreateBudget(r.Context(), userID, in)
		return err
	}()
	s.afterForm(w, r, userID, budgetsRoute, err)
}

func (s *Server) handleBudgetDeleteForm(w http.ResponseWriter, r *http.Request, userID string) {
	s.afterForm(w, r, userID, budgetsRoute, s.svc.DeleteBudget(r.Context(), userID, r.PathValue("id")))
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request, userID string) {
	s.renderPage(w, r, userID, txRoute, nil)
}

func (s *Server) handleTransactionForm(w http.ResponseWriter, r *http.Request, userID string) {
	err := func() error {
		p, err := parseBody(w, r)
		if err != nil {
			return err
		}
		in, err := decodeTransaction(p, s.now())
		if err != nil {
			return err
		}
		_, err = s.svc.CreateTransaction(r.Context(), userID, in)
		return err
	}()
	s.afterForm(w, r, userID, txRoute, err)
}

func (s *Server) handleTransactionDeleteForm(w http.ResponseWriter, r *http.Request, userID string) {
	s.afterForm(w, r, userID, txRoute, s.svc.DeleteTransaction(r.Context(), userID, r.PathValue("id")))
}
