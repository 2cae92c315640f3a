package http

import (
	"net/http"

	"carteira/internal/core"
	"carteira/internal/middleware/owner"
)

func (s *Server) handleSubmitBudget(w http.ResponseWriter, r *http.Request) {
	const op = "submit_budget_snapshot"

	var req budgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	in, err := req.input()
	if err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	res, err := s.svc.Budget.SubmitBudgetSnapshot(r.Context(), owner.FromContext(r.Context()), in)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	CreatedResponse(newBudgetResultView(res)).Write(w)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "latest_budget_snapshot"

	snap, err := s.svc.Budget.LatestSnapshot(r.Context(), owner.FromContext(r.Context()))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newSnapshotView(snap)).Write(w)
}

// handleMonthlyReport returns income and expense totals for ?from&to,
// defaulting to the current month, with a per-category breakdown.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	const op = "monthly_summary"

	rng, err := ParseDateRange(r.URL.Query(), core.Today())
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	ownerID := owner.FromContext(r.Context())

	summary, err := s.svc.Reports.MonthlySummary(r.Context(), ownerID, rng.From, rng.To)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	categories, err := s.svc.Ledger.TransactionsByCategory(r.Context(), ownerID, rng.From, rng.To)
	if s.record("transactions_by_category", err) != nil {
		s.fail(w, r, op, err)
		return
	}

	DataResponse(monthlyReportView{
		Summary:    newMonthSummaryView(summary),
		Categories: newCategoryAmountViews(categories),
	}).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard"

	d, err := s.svc.Reports.Dashboard(r.Context(), owner.FromContext(r.Context()))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newDashboardView(d)).Write(w)
}
