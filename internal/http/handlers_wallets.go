package http

import (
	"net/http"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/middleware/owner"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	const op = "create_wallet"

	var req walletRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	wallet, err := s.svc.Wallets.CreateWallet(r.Context(), owner.FromContext(r.Context()), req.input())
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	CreatedResponse(newWalletView(wallet)).Write(w)
}

func (s *Server) handleBootstrapWallets(w http.ResponseWriter, r *http.Request) {
	const op = "bootstrap_wallets"

	wallets, err := s.svc.Wallets.BootstrapDefaultWallets(r.Context(), owner.FromContext(r.Context()))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newWalletViews(wallets)).Write(w)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	const op = "list_wallets"
	ownerID := owner.FromContext(r.Context())

	wallets, err := s.svc.Wallets.ListWallets(r.Context(), ownerID)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	total, err := s.svc.Wallets.TotalBalance(r.Context(), ownerID)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(walletsView{Wallets: newWalletViews(wallets), TotalBalance: total}).Write(w)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	const op = "get_wallet"

	wallet, err := s.svc.Wallets.GetWallet(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newWalletView(wallet)).Write(w)
}

func (s *Server) handleOverrideBalance(w http.ResponseWriter, r *http.Request) {
	const op = "override_balance"

	var req balanceRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}
	if req.Balance == nil {
		s.fail(w, r, op, s.record(op, core.Validationf("balance is required")))
		return
	}

	wallet, err := s.svc.Wallets.OverrideBalance(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"), *req.Balance)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newWalletView(wallet)).Write(w)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	const op = "delete_wallet"
	id := chi.URLParam(r, "id")

	err := s.svc.Wallets.DeleteWallet(r.Context(), owner.FromContext(r.Context()), id)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(deletedView{ID: id, Deleted: true}).Write(w)
}

func (s *Server) handleReconcileWallet(w http.ResponseWriter, r *http.Request) {
	const op = "reconcile_wallet"

	rec, err := s.svc.Wallets.Reconcile(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	if !rec.Consistent() {
		s.log.WarnContext(r.Context(), "Wallet balance drift detected",
			log.FieldWalletID, rec.WalletID,
			"stored_cents", rec.Stored.Cents,
			"derived_cents", rec.Derived.Cents)
	}
	DataResponse(newReconciliationView(rec)).Write(w)
}
