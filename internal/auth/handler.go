package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/whisperbox/backend/internal/models"
	"github.com/whisperbox/backend/internal/store"
)

// UserStore defines the persistence needed by the auth handlers.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) (string, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hashedPassword string) error
	SetVerified(ctx context.Context, id string, verified bool) error
}

// CodeStore holds pending email verification codes.
type CodeStore interface {
	Set(ctx context.Context, username, code string) error
	Get(ctx context.Context, username string) (string, error)
	Delete(ctx context.Context, username string) error
}

// Mailer delivers verification codes.
type Mailer interface {
	SendVerificationCode(to, username, code string) error
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	codes    CodeStore
	verifier *Verifier
	codec    *TokenCodec
	mailer   Mailer
}

func NewHandler(users UserStore, codes CodeStore, codec *TokenCodec, mailer Mailer) *Handler {
	return &Handler{
		users:    users,
		codes:    codes,
		verifier: NewVerifier(users),
		codec:    codec,
		mailer:   mailer,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func apiMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, models.APIResponse{Success: success, Message: message})
}

// SignUp registers a new user and emails a verification code. An unverified
// account holding the same email is overwritten rather than rejected.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		apiMessage(w, http.StatusBadRequest, false, "Username, email, and password are required")
		return
	}

	existing, err := h.users.FindByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}
	if existing != nil && existing.IsVerified {
		apiMessage(w, http.StatusConflict, false, "Username is already taken")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	byEmail, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	switch {
	case byEmail != nil && byEmail.IsVerified:
		apiMessage(w, http.StatusConflict, false, "User already exists with this email")
		return
	case byEmail != nil:
		// Re-registration of an unverified account: refresh the password
		// and issue a new code.
		if err := h.users.UpdatePassword(r.Context(), byEmail.ID.Hex(), string(hashed)); err != nil {
			apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
			return
		}
	default:
		user := &models.User{
			Username:            req.Username,
			Email:               req.Email,
			Password:            string(hashed),
			IsVerified:          false,
			IsAcceptingMessages: true,
		}
		if _, err := h.users.Insert(r.Context(), user); err != nil {
			slog.Error("sign-up insert failed", "error", err)
			apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
			return
		}
	}

	code, err := generateCode()
	if err != nil {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}
	if err := h.codes.Set(r.Context(), req.Username, code); err != nil {
		slog.Error("verification code store failed", "error", err)
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}
	if err := h.mailer.SendVerificationCode(req.Email, req.Username, code); err != nil {
		slog.Error("verification email failed", "email", req.Email, "error", err)
		apiMessage(w, http.StatusInternalServerError, false, "Error sending verification email")
		return
	}

	apiMessage(w, http.StatusCreated, true, "User registered successfully. Please verify your account.")
}

// VerifyCode marks an account verified when the submitted code matches.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	user, err := h.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apiMessage(w, http.StatusNotFound, false, "User not found")
			return
		}
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	stored, err := h.codes.Get(r.Context(), req.Username)
	if err != nil {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}
	if stored == "" {
		apiMessage(w, http.StatusBadRequest, false, "Verification code has expired. Please sign up again to get a new code.")
		return
	}
	if stored != req.Code {
		apiMessage(w, http.StatusBadRequest, false, "Incorrect verification code")
		return
	}

	if err := h.users.SetVerified(r.Context(), user.ID.Hex(), true); err != nil {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}
	h.codes.Delete(r.Context(), req.Username)

	apiMessage(w, http.StatusOK, true, "Account verified successfully")
}

// SignIn authenticates the credentials and sets the session cookie. Each
// failure kind keeps its own message, matching the login UX this service
// inherited.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiMessage(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		apiMessage(w, http.StatusBadRequest, false, "Identifier and password are required")
		return
	}

	user, err := h.verifier.Verify(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			apiMessage(w, http.StatusUnauthorized, false, "No user found with this email or username")
		case errors.Is(err, ErrUnverified):
			apiMessage(w, http.StatusUnauthorized, false, "Please verify your account before logging in")
		case errors.Is(err, ErrBadPassword):
			apiMessage(w, http.StatusUnauthorized, false, "Incorrect password")
		default:
			slog.Error("sign-in lookup failed", "error", err)
			apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		}
		return
	}

	token, err := h.codec.Encode(user)
	if err != nil {
		apiMessage(w, http.StatusInternalServerError, false, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.codec.TTL() / time.Second),
	})

	writeJSON(w, http.StatusOK, user)
}

// SignOut clears the session cookie.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	apiMessage(w, http.StatusOK, true, "Signed out")
}

// Session returns the effective session identity decoded from the token.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		apiMessage(w, http.StatusUnauthorized, false, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":                  claims.UserID(),
		"username":            claims.Username,
		"isVerified":          claims.IsVerified,
		"isAcceptingMessages": claims.IsAcceptingMessages,
	})
}

// generateCode returns a 6-digit numeric verification code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
