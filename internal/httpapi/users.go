package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/hyu9999/paper-trading-1/internal/auth"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/money"
)

type updateCashRequest struct {
	Delta string `json:"delta"`
}

func (s *Server) handleUpdateCash(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}
	delta, err := money.Parse(req.Delta)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed delta"})
		return
	}

	user, err := s.userCache.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if delta.IsNegative() && user.AvailableCash.Add(delta).IsNegative() {
		writeError(w, domain.ErrInsufficientFunds(delta.Neg().String(), user.AvailableCash.String()))
		return
	}
	user.Cash = user.Cash.Add(delta)
	user.AvailableCash = user.AvailableCash.Add(delta)
	user.Assets = user.Cash.Add(user.Securities)
	if err := s.userCache.Set(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleTerminateUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := s.userCache.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	user.Status = domain.UserStatusTerminated
	if err := s.userRepo.Update(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	if err := s.userCache.Delete(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	positions, err := s.posCache.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, p := range positions {
		if err := s.posCache.Delete(r.Context(), p.User, p.Symbol, p.Exchange); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
