package http

import (
	"net/http"
	"strings"

	"carteira/internal/core"
	"carteira/internal/middleware/owner"
	"carteira/internal/storage"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "apply_transaction"

	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	ownerID := owner.FromContext(r.Context())
	tx, err := s.svc.Ledger.ApplyTransaction(r.Context(), ownerID, req.input())
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	CreatedResponse(newTransactionView(tx)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "list_transactions"
	query := r.URL.Query()

	rng, err := ParseOptionalDateRange(query)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	limit, err := ParseLimit(query)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	filter := storage.TransactionFilter{
		From:     rng.From,
		To:       rng.To,
		Category: sanitizeInput(query.Get("category")),
		Type:     core.TransactionType(strings.TrimSpace(query.Get("type"))),
		WalletID: sanitizeInput(query.Get("wallet_id")),
		GoalID:   sanitizeInput(query.Get("goal_id")),
		Limit:    limit,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		s.fail(w, r, op, core.Validationf("invalid transaction type %q", filter.Type))
		return
	}

	txs, err := s.svc.Ledger.ListTransactions(r.Context(), owner.FromContext(r.Context()), filter)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newTransactionViews(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "get_transaction"

	tx, err := s.svc.Ledger.GetTransaction(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newTransactionView(tx)).Write(w)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "edit_transaction"

	var req transactionPatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	tx, err := s.svc.Ledger.EditTransaction(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"), req.patch())
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newTransactionView(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "delete_transaction"
	id := chi.URLParam(r, "id")

	err := s.svc.Ledger.DeleteTransaction(r.Context(), owner.FromContext(r.Context()), id)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(deletedView{ID: id, Deleted: true}).Write(w)
}
