package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tollbooth-hq/tollbooth/pkg/ledger"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/proxy"
	"tollbooth-hq/tollbooth/pkg/proxy/types"
)

// BudgetHandler serves the caller's budget and the internal ledger
// administration routes. Admin changes go through the ledger, so they
// reach the durable store with the next flush like any other spend.
type BudgetHandler struct {
	ledger BudgetLedger
	userID func(header string) string
	logger *slog.Logger
}

// NewBudgetHandler creates the handler. userID resolves the X-User-Id
// header, defaulting it the same way admission does.
func NewBudgetHandler(l BudgetLedger, userID func(string) string, logger *slog.Logger) *BudgetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetHandler{
		ledger: l,
		userID: userID,
		logger: logger.With("component", "budget_admin"),
	}
}

// CallerBudget handles GET /v1/budget.
func (h *BudgetHandler) CallerBudget(w http.ResponseWriter, r *http.Request) {
	user := h.userID(r.Header.Get(proxy.UserIDHeader))
	_ = proxy.WriteJSONResponse(w, http.StatusOK, types.BudgetResponse{
		UserID:       user,
		AvailableUSD: h.ledger.BalanceOf(user).USD(),
	})
}

// GetAccount handles GET /internal/budgets/{user_id}.
func (h *BudgetHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	h.writeAccount(w, user)
}

// SetBalance handles PUT /internal/budgets/{user_id}.
func (h *BudgetHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	var req types.SetBalanceRequest
	if err := proxy.DecodeJSON(r, &req); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}
	balance, err := parseAmount(req.BalanceUSD, "balance_usd")
	if err == nil {
		var old money.Amount
		old, err = h.ledger.SetBalance(user, balance)
		if err == nil {
			h.logger.InfoContext(r.Context(), "balance set",
				"user_id", user,
				"old_balance", old.USD(),
				"new_balance", balance.USD(),
			)
		}
	}
	if err != nil {
		h.writeAdminError(w, err, "balance_usd")
		return
	}
	h.writeAccount(w, user)
}

// Credit handles POST /internal/budgets/{user_id}/credit.
func (h *BudgetHandler) Credit(w http.ResponseWriter, r *http.Request) {
	user, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	var req types.CreditRequest
	if err := proxy.DecodeJSON(r, &req); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}
	amt, err := parseAmount(req.AmountUSD, "amount_usd")
	if err == nil {
		var avail money.Amount
		avail, err = h.ledger.Credit(user, amt)
		if err == nil {
			h.logger.InfoContext(r.Context(), "budget credited",
				"user_id", user,
				"amount", amt.USD(),
				"available", avail.USD(),
			)
		}
	}
	if err != nil {
		h.writeAdminError(w, err, "amount_usd")
		return
	}
	h.writeAccount(w, user)
}

func (h *BudgetHandler) pathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.PathValue("user_id"))
	if user == "" {
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError("user_id is required", "user_id", types.CodeMissingField))
		return "", false
	}
	return user, true
}

func (h *BudgetHandler) writeAccount(w http.ResponseWriter, user string) {
	acct, known := h.ledger.Account(user)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, types.AccountResponse{
		UserID:       user,
		BalanceUSD:   acct.Balance.USD(),
		ReservedUSD:  acct.Reserved.USD(),
		AvailableUSD: acct.Available().USD(),
		UnflushedUSD: acct.Unflushed.USD(),
		Holds:        acct.Holds,
		Known:        known,
	})
}

func (h *BudgetHandler) writeAdminError(w http.ResponseWriter, err error, param string) {
	if errors.Is(err, ledger.ErrInvalidAmount) {
		err = &proxy.RequestError{Message: err.Error(), Code: types.CodeInvalidValue, Param: param}
	}
	_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
}

func parseAmount(s, param string) (money.Amount, error) {
	amt, err := money.ParseUSD(s)
	if err != nil {
		return 0, &proxy.RequestError{Message: err.Error(), Code: types.CodeInvalidValue, Param: param}
	}
	return amt, nil
}
