package user

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/internal/identity"
	"github.com/ovaphlow/parkpro/service-core-go/internal/user/entity"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/utilities"
)

// TokenIssuer mints access tokens at login.
type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

// Handler exposes HTTP endpoints for authentication, recovery and profiles.
type Handler struct {
	svc    *UserService
	tokens TokenIssuer
	logger *zap.SugaredLogger
}

// NewHandler builds a Handler. tokens may be nil, in which case login returns
// the user without an access token.
func NewHandler(svc *UserService, tokens TokenIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// LoginResponse is the user plus an optional access token.
type LoginResponse struct {
	*entity.User
	AccessToken string     `json:"access_token,omitempty"`
	TokenType   string     `json:"token_type,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	f, missing := utilities.FormValues(r, "email", "password")
	if missing != "" {
		utilities.WriteDetail(w, http.StatusUnprocessableEntity, missing+" is required")
		return
	}
	u, err := h.svc.Login(r.Context(), f["email"], f["password"])
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.Debugw("login failed", "err", err)
			utilities.WriteDetail(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.internal(w, "login", err)
		return
	}
	resp := LoginResponse{User: u}
	if h.tokens != nil {
		tok, exp, err := h.tokens.Issue(u.ID, u.Email)
		if err != nil {
			h.internal(w, "issue token", err)
			return
		}
		resp.AccessToken, resp.TokenType, resp.ExpiresAt = tok, "bearer", &exp
	}
	h.logger.Debugw("login successful", "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusOK, resp)
}

// ChangePassword requires the caller identity set by identity.Middleware.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	email, ok := identity.EmailFrom(r.Context())
	if !ok {
		utilities.WriteDetail(w, http.StatusUnauthorized, "Missing caller identity")
		return
	}
	f, missing := utilities.FormValues(r, "current_password", "new_password")
	if missing != "" {
		utilities.WriteDetail(w, http.StatusUnprocessableEntity, missing+" is required")
		return
	}
	err := h.svc.ChangePassword(r.Context(), email, f["current_password"], f["new_password"])
	switch {
	case err == nil:
		utilities.WriteMessage(w, "Password changed successfully")
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrInvalidCredentials):
		utilities.WriteDetail(w, http.StatusUnauthorized, "Invalid current password")
	case errors.Is(err, ErrInvalidPassword):
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid new password")
	default:
		h.internal(w, "change password", err)
	}
}

func (h *Handler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	f, missing := utilities.FormValues(r, "email")
	if missing != "" {
		utilities.WriteDetail(w, http.StatusUnprocessableEntity, missing+" is required")
		return
	}
	err := h.svc.RequestRecovery(r.Context(), f["email"])
	switch {
	case err == nil:
		utilities.WriteMessage(w, "Verification code sent")
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "User not found")
	default:
		h.internal(w, "send verification code", err)
	}
}

func (h *Handler) ChangePasswordWithCode(w http.ResponseWriter, r *http.Request) {
	f, missing := utilities.FormValues(r, "email", "code", "new_password")
	if missing != "" {
		utilities.WriteDetail(w, http.StatusUnprocessableEntity, missing+" is required")
		return
	}
	err := h.svc.CompleteRecovery(r.Context(), f["email"], f["code"], f["new_password"])
	switch {
	case err == nil:
		utilities.WriteMessage(w, "Password changed successfully")
	case errors.Is(err, ErrInvalidOrExpiredCode):
		utilities.WriteDetail(w, http.StatusUnauthorized, "Invalid or expired verification code")
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrInvalidPassword):
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid new password")
	default:
		h.internal(w, "change password with code", err)
	}
}

// CreateRequest is the registration payload.
type CreateRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        *string `json:"phone"`
	ProfileImage *string `json:"profileImage"`
	Password     string  `json:"password"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid user payload", "err", err)
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.Create(r.Context(), CreateInput(req))
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusCreated, u)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidPassword):
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEmailTaken):
		utilities.WriteDetail(w, http.StatusConflict, "Email already registered")
	default:
		h.internal(w, "create user", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !utilities.ValidID(id) {
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	u, err := h.svc.GetByID(r.Context(), id)
	h.writeUser(w, u, err)
}

func (h *Handler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetByEmail(r.Context(), r.PathValue("email"))
	h.writeUser(w, u, err)
}

func (h *Handler) writeUser(w http.ResponseWriter, u *entity.User, err error) {
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusOK, u)
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "User not found")
	default:
		h.internal(w, "get user", err)
	}
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	f, missing := utilities.FormValues(r, "email", "name")
	if missing != "" {
		utilities.WriteDetail(w, http.StatusUnprocessableEntity, missing+" is required")
		return
	}
	err := h.svc.UpdateProfile(r.Context(), f["email"], entity.ProfileUpdate{
		Name:         f["name"],
		Phone:        utilities.OptionalForm(r, "phone"),
		ProfileImage: utilities.OptionalForm(r, "profileImage"),
	})
	switch {
	case err == nil:
		utilities.WriteMessage(w, "Profile updated successfully")
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "User not found")
	default:
		h.internal(w, "update profile", err)
	}
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Errorw("request failed", "operation", op, "err", err)
	utilities.WriteDetail(w, http.StatusInternalServerError, "Internal server error")
}
