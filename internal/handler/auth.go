package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/auth"
	"storefront-api/internal/models"
)

type googleSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type phoneStartRequest struct {
	PhoneNumber    string `json:"phone_number" binding:"required,e164"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type phoneVerifyRequest struct {
	VerificationID string `json:"verification_id"`
	Code           string `json:"code" binding:"required,numeric,min=4,max=8"`
}

// signInResponse carries the bearer token that identifies the auth session
// on later calls.
type signInResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

type phoneStartResponse struct {
	Token          string     `json:"token"`
	Status         string     `json:"status"`
	VerificationID string     `json:"verification_id,omitempty"`
	User           *auth.User `json:"user,omitempty"`
}

func (h *Handler) signInWithGoogle(c *gin.Context) {
	if !h.authEnabled(c) {
		return
	}
	var req googleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id_token is required", err)
		return
	}

	s := h.auth.GetOrCreate(bearer(c))
	u, err := s.SignInWithGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		h.dropIfNew(c, s)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signInResponse{Token: s.ID, User: u})
}

func (h *Handler) startPhoneVerification(c *gin.Context) {
	if !h.authEnabled(c) {
		return
	}
	var req phoneStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone_number must be in E.164 format", err)
		return
	}

	s := h.auth.GetOrCreate(bearer(c))
	res := phoneStartResponse{Token: s.ID}
	_, err := s.StartPhoneVerification(c.Request.Context(), auth.PhoneRequest{
		PhoneNumber:    req.PhoneNumber,
		RecaptchaToken: req.RecaptchaToken,
	}, func(ev auth.VerificationEvent) {
		switch ev.Kind {
		case auth.CodeSent:
			res.Status = ev.Kind.String()
			res.VerificationID = ev.VerificationID
		case auth.AutoVerified:
			res.Status = ev.Kind.String()
			res.User = ev.User
		}
	})
	if err != nil {
		h.dropIfNew(c, s)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) verifyPhoneCode(c *gin.Context) {
	if !h.authEnabled(c) {
		return
	}
	var req phoneVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "a numeric code is required", err)
		return
	}

	s := h.auth.GetOrCreate(bearer(c))
	u, err := s.VerifyPhoneCode(c.Request.Context(), req.VerificationID, req.Code)
	if err != nil {
		h.dropIfNew(c, s)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signInResponse{Token: s.ID, User: u})
}

func (h *Handler) signOut(c *gin.Context) {
	if !h.authEnabled(c) {
		return
	}
	s, ok := h.auth.Get(bearer(c))
	if !ok {
		writeError(c, auth.ErrNotSignedIn)
		return
	}
	if err := s.SignOut(); err != nil {
		writeError(c, err)
		return
	}
	h.auth.Delete(s.ID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) currentUser(c *gin.Context) {
	if !h.authEnabled(c) {
		return
	}
	s, ok := h.auth.Get(bearer(c))
	if !ok {
		writeError(c, auth.ErrNotSignedIn)
		return
	}
	u, ok := s.CurrentUser()
	if !ok {
		writeError(c, auth.ErrNotSignedIn)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) authEnabled(c *gin.Context) bool {
	if h.auth != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error:   "auth_unavailable",
		Code:    http.StatusServiceUnavailable,
		Message: "no identity provider is configured",
	})
	return false
}

// dropIfNew forgets a session this request created once the request failed.
func (h *Handler) dropIfNew(c *gin.Context, s *auth.Session) {
	if s.ID != bearer(c) && !s.IsSignedIn() {
		h.auth.Delete(s.ID)
	}
}

func bearer(c *gin.Context) string {
	const prefix = "Bearer "
	h := c.GetHeader("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
