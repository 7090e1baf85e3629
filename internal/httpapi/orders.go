package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyu9999/paper-trading-1/internal/auth"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/money"
)

type createOrderRequest struct {
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange"`
	Volume    int64  `json:"volume"`
	Price     string `json:"price"`
	OrderType string `json:"orderType"`
	TradeType string `json:"tradeType"`
}

type createOrderResponse struct {
	EntrustID string `json:"entrustId"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}
	price, err := money.Parse(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed price"})
		return
	}

	user, err := s.userCache.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	order := &domain.Order{
		User:      userID,
		Symbol:    req.Symbol,
		Exchange:  domain.Exchange(req.Exchange),
		Volume:    req.Volume,
		Price:     price,
		OrderType: domain.OrderType(req.OrderType),
		TradeType: domain.TradeType(req.TradeType),
	}

	created, err := s.main.OnOrderArrived(r.Context(), order, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{EntrustID: created.EntrustID})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	entrustID := chi.URLParam(r, "entrustId")
	order, err := s.main.GetOrder(r.Context(), entrustID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var statuses []domain.OrderStatus
	for _, raw := range r.URL.Query()["status"] {
		statuses = append(statuses, domain.OrderStatus(raw))
	}
	var start, end *time.Time
	if v := r.URL.Query().Get("startDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			start = &t
		}
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			end = &t
		}
	}

	orders, err := s.main.ListOrders(r.Context(), userID, statuses, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	entrustID := chi.URLParam(r, "entrustId")
	if err := s.main.CancelOrder(r.Context(), entrustID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	positions, err := s.users.ListPositions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}
