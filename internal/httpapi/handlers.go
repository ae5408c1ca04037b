package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/otpgate"
	"github.com/MrEthical07/otpgate/identity"
	"github.com/MrEthical07/otpgate/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseBackup bool   `json:"useBackup"`
}

type otpRequest struct {
	OTP       string `json:"otp"`
	UseBackup bool   `json:"useBackup"`
}

type emailCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type backupEmailRequest struct {
	BackupEmail      string `json:"backupEmail"`
	VerificationCode string `json:"verificationCode"`
}

type sensitiveRequest struct {
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Register(r.Context(), otpgate.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"userId":        res.UserID,
		"emailVerified": res.EmailVerified,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Login(r.Context(), otpgate.LoginRequest{
		SessionID: readCookie(r, middleware.SessionCookie),
		Email:     req.Email,
		Password:  req.Password,
		UseBackup: req.UseBackup,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cookies.setSession(w, res.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"requireOTP":  res.RequireOTP,
		"destination": res.Destination,
	})
}

func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !s.decode(w, r, &req) {
		return
	}
	dest, err := s.engine.ResendOTP(r.Context(), otpgate.ResendOTPRequest{
		SessionID: readCookie(r, middleware.SessionCookie),
		UseBackup: req.UseBackup,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "destination": dest})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.VerifyOTP(r.Context(), otpgate.VerifyOTPRequest{
		SessionID: readCookie(r, middleware.SessionCookie),
		OTP:       req.OTP,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cookies.setSession(w, res.SessionID)
	s.cookies.setTokens(w, res.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userBody{ID: res.User.ID, Email: res.User.Email, Name: res.User.Name},
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.engine.Refresh(r.Context(), readCookie(r, middleware.RefreshCookie))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cookies.setTokens(w, *pair)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), readCookie(r, middleware.SessionCookie)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context(), otpgate.StatusRequest{
		SessionID:    readCookie(r, middleware.SessionCookie),
		AccessToken:  middleware.AccessToken(r),
		RefreshToken: readCookie(r, middleware.RefreshCookie),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	session := map[string]any{"user": nil}
	if st.User != nil {
		session["user"] = userBody{ID: st.User.ID, Email: st.User.Email, Name: st.User.Name}
	}
	if !st.LastActivity.IsZero() {
		session["lastActivity"] = st.LastActivity.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": st.State == otpgate.StateAuthenticated,
		"state":           st.State,
		"sessionInfo":     session,
		"tokens": map[string]bool{
			"hasAccessToken":   st.HasAccessToken,
			"accessTokenValid": st.AccessTokenValid,
			"hasRefreshToken":  st.HasRefreshToken,
		},
	})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.verifier.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		s.failVerification(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.verifier.ResendVerification(r.Context(), req.Email); err != nil {
		s.failVerification(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) addBackupEmail(w http.ResponseWriter, r *http.Request) {
	var req backupEmailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.AddBackupEmail(r.Context(), currentUser(r), req.BackupEmail); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) verifyBackupEmail(w http.ResponseWriter, r *http.Request) {
	var req backupEmailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.VerifyBackupEmail(r.Context(), currentUser(r), req.VerificationCode); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) testBackupEmail(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.TestBackupEmail(r.Context(), currentUser(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) updateSensitive(w http.ResponseWriter, r *http.Request) {
	var req sensitiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.engine.UpdateSensitiveData(r.Context(), currentUser(r), otpgate.SensitiveUpdate{
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) sensitiveData(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.SensitiveData(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]bool{"hasPhone": p.HasPhone, "hasAddress": p.HasAddress},
	})
}

func (s *Server) decryptedSensitiveData(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.DecryptSensitiveData(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]string{"phone": p.Phone, "address": p.Address},
	})
}

func currentUser(r *http.Request) string {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok || res == nil {
		return ""
	}
	return res.UserID
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, otpgate.ErrInvalidRequest)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := middleware.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	middleware.WriteError(w, r, err)
}

// guardError clears the client's cookies once its session is gone.
func (s *Server) guardError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, otpgate.ErrSessionExpired) || errors.Is(err, otpgate.ErrNotAuthenticated) {
		s.cookies.clear(w)
	}
	s.fail(w, r, err)
}

func (s *Server) failVerification(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidVerificationCode):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_verification_code"})
		return
	case errors.Is(err, identity.ErrVerificationRateLimited):
		s.fail(w, r, otpgate.ErrRateLimited)
		return
	}
	s.fail(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
