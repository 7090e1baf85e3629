package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/money"
)

type registerRequest struct {
	Password   string `json:"password"`
	Capital    string `json:"capital"`
	Commission string `json:"commission"`
	TaxRate    string `json:"taxRate"`
	Slippage   string `json:"slippage"`
}

type registerResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}

	capital, err := parseOrZero(req.Capital)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed capital"})
		return
	}
	commission, _ := parseOrZero(req.Commission)
	taxRate, _ := parseOrZero(req.TaxRate)
	slippage, _ := parseOrZero(req.Slippage)

	now := time.Now()
	user := &domain.User{
		ID:            uuid.NewString(),
		Capital:       capital,
		Cash:          capital,
		AvailableCash: capital,
		Securities:    money.Zero,
		Assets:        capital,
		Commission:    commission,
		TaxRate:       taxRate,
		Slippage:      slippage,
		Status:        domain.UserStatusActivated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Create(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	if err := s.userCache.Set(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	if s.credRepo != nil {
		cred := &domain.AuthCredential{UserID: user.ID, CreatedAt: now}
		_ = s.credRepo.Create(r.Context(), cred)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: user.ID, Token: token})
}

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}
	if _, err := s.userCache.Get(r.Context(), req.UserID); err != nil {
		if _, err2 := s.userRepo.GetByID(r.Context(), req.UserID); err2 != nil {
			writeError(w, domain.ErrInvalidUserID(req.UserID))
			return
		}
	}
	token, err := s.issueToken(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// issueToken mints a JWT in JWT auth mode, or returns the literal user id
// as the token in UID mode (the resolver accepts the raw id as a token).
func (s *Server) issueToken(userID string) (string, error) {
	if s.issuer == nil {
		return userID, nil
	}
	return s.issuer.IssueAccessToken(userID)
}

func parseOrZero(s string) (money.Decimal, error) {
	if s == "" {
		return money.Zero, nil
	}
	return money.Parse(s)
}
