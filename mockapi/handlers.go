package mockapi

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/gov-console/exchange"
	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/internal/utils"
	"github.com/jrsteele09/gov-console/token"
	"github.com/jrsteele09/gov-console/users"
)

// LoginHandler answers with the credentials at the root of the response.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exchange.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFailure(w, http.StatusBadRequest, "Malformed request body")
			return
		}

		grant, err := s.tokens.Authenticate(req.UserID, req.Password)
		switch {
		case interrors.Is(err, interrors.ErrInvalidCredentials):
			writeFailure(w, http.StatusUnauthorized, "Invalid user ID or password")
			return
		case interrors.Is(err, interrors.ErrUserBlocked):
			writeFailure(w, http.StatusForbidden, "Account is blocked")
			return
		case err != nil:
			s.logger.Err(err).Str("user_id", req.UserID).Msg("login failed")
			writeFailure(w, http.StatusInternalServerError, "Login failed")
			return
		}

		s.logger.Info().Str("user_id", grant.User.UserID).Msg("user signed in")
		writeJSON(w, http.StatusOK, exchange.Response{
			Success: utils.Ptr(true),
			Message: "Login successful",
			Payload: grantPayload(grant),
		})
	}
}

// RefreshHandler answers with the credentials nested under "data".
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exchange.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFailure(w, http.StatusBadRequest, "Malformed request body")
			return
		}

		grant, err := s.tokens.Refresh(req.RefreshToken)
		if err != nil {
			s.logger.Debug().Err(err).Msg("refresh rejected")
			writeFailure(w, http.StatusUnauthorized, "Session expired")
			return
		}

		payload := grantPayload(grant)
		payload.AccessToken, payload.Token = payload.Token, ""
		writeJSON(w, http.StatusOK, exchange.Response{
			Success: utils.Ptr(true),
			Data:    &payload,
		})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		if err := s.tokens.Logout(raw); err != nil {
			writeFailure(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		writeJSON(w, http.StatusOK, exchange.Response{Success: utils.Ptr(true), Message: "Logged out"})
	}
}

// PendingHandler lists companies awaiting approval.
func (s *Server) PendingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			s.logger.Debug().Str("user_id", claims.UserID).Msg("listing pending companies")
		}
		pending := make([]Company, 0, len(s.companies))
		for _, c := range s.companies {
			if c.Status == StatusPending {
				pending = append(pending, c)
			}
		}
		writeJSON(w, http.StatusOK, pending)
	}
}

func grantPayload(grant *token.Grant) exchange.Payload {
	return exchange.Payload{
		Token:        grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		User:         wireUser(grant.User),
	}
}

func wireUser(u *users.User) *exchange.User {
	return &exchange.User{
		ID:     exchange.FlexString(u.ID),
		UserID: exchange.FlexString(u.UserID),
		Name:   u.Name,
		Role:   string(u.Role),
		Email:  u.Email,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, exchange.Response{Success: utils.Ptr(false), Message: message})
}
