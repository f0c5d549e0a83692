package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

type transactionFormData struct {
	Types      []core.TransactionType
	Households []core.HouseholdType
	Today      string
	Recent     []core.Transaction
}

func (s *Server) handleTransactionForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	recent, err := s.deps.Transactions.Recent(r.Context(), sess.AccountID, ledger.DefaultRecentLimit)
	if err != nil {
		s.events.LogError(r.Context(), "Recent transactions failed", err, log.OpRead, log.NewFields().WithUser(sess.Username))
	}

	s.renderPage(w, r, http.StatusOK, "transaction_form.html", pageData{
		Title: "New transaction",
		User:  sess.Username,
		Content: transactionFormData{
			Types:      core.TransactionTypes(),
			Households: []core.HouseholdType{core.HouseholdSingle, core.HouseholdCouple, core.HouseholdFamily},
			Today:      time.Now().Format("2006-01-02"),
			Recent:     recent,
		},
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	t, err := ParseTransactionForm(r.PostForm, sess.AccountID)
	if err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			UnprocessableEntityError(fmt.Sprintf("Invalid %s: %v", fe.Field, fe.Err)).Write(w)
			return
		}
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	id, err := s.deps.Transactions.AddTransaction(r.Context(), t)
	if err != nil {
		s.events.LogError(r.Context(), "Transaction save failed", err, log.OpCreate,
			log.NewFields().WithUser(sess.Username).WithTransaction(0, string(t.Type), t.Category, t.Amount.Cents))
		InternalServerError("Could not save the transaction").Write(w)
		return
	}

	msg := fmt.Sprintf("Saved #%d: %s %s %s on %s", id, t.Type, t.Category, t.Amount, t.Date.Format("2006-01-02"))
	MessageResponse(http.StatusOK, "success", msg).
		TriggerTransactionCreated(t.Date.Year(), int(t.Date.Month())).
		TriggerFormReset().
		Write(w)
}
