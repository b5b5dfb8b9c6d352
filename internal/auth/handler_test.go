package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/whisperbox/backend/internal/models"
	"github.com/whisperbox/backend/internal/store"
)

type fakeUsers struct {
	byID map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*models.User{}}
	for _, u := range users {
		f.byID[u.ID.Hex()] = u
	}
	return f
}

func (f *fakeUsers) Insert(_ context.Context, user *models.User) (string, error) {
	user.ID = primitive.NewObjectID()
	f.byID[user.ID.Hex()] = user
	return user.ID.Hex(), nil
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == identifier || u.Username == identifier {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hashedPassword string) error {
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = hashedPassword
	return nil
}

func (f *fakeUsers) SetVerified(_ context.Context, id string, verified bool) error {
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsVerified = verified
	return nil
}

type fakeCodes struct {
	codes map[string]string
}

func (f *fakeCodes) Set(_ context.Context, username, code string) error {
	f.codes[username] = code
	return nil
}

func (f *fakeCodes) Get(_ context.Context, username string) (string, error) {
	return f.codes[username], nil
}

func (f *fakeCodes) Delete(_ context.Context, username string) error {
	delete(f.codes, username)
	return nil
}

type fakeMailer struct {
	sent []string // recipient addresses
	fail bool
}

func (f *fakeMailer) SendVerificationCode(to, username, code string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to)
	return nil
}

func newTestHandler(t *testing.T, users *fakeUsers) (*Handler, *fakeCodes, *fakeMailer) {
	t.Helper()
	codec, err := NewTokenCodec("test-secret", time.Hour)
	require.NoError(t, err)
	codes := &fakeCodes{codes: map[string]string{}}
	mailer := &fakeMailer{}
	return NewHandler(users, codes, codec, mailer), codes, mailer
}

func verifiedUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:                  primitive.NewObjectID(),
		Username:            username,
		Email:               username + "@example.com",
		Password:            hash(t, password),
		IsVerified:          true,
		IsAcceptingMessages: true,
	}
}

func TestSignUp_NewUser(t *testing.T) {
	users := newFakeUsers()
	h, codes, mailer := newTestHandler(t, users)

	body := strings.NewReader(`{"username":"ada","email":"ada@example.com","password":"pw123456"}`)
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/sign-up", body))

	require.Equal(t, http.StatusCreated, rec.Code)

	created, err := users.FindByUsername(context.Background(), "ada")
	require.NoError(t, err)
	require.False(t, created.IsVerified)
	require.True(t, created.IsAcceptingMessages)
	require.NotEmpty(t, codes.codes["ada"])
	require.Len(t, codes.codes["ada"], 6)
	require.Equal(t, []string{"ada@example.com"}, mailer.sent)
}

func TestSignUp_VerifiedUsernameTaken(t *testing.T) {
	users := newFakeUsers(verifiedUser(t, "ada", "pw"))
	h, _, _ := newTestHandler(t, users)

	body := strings.NewReader(`{"username":"ada","email":"other@example.com","password":"pw123456"}`)
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/sign-up", body))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"Username is already taken"}`, rec.Body.String())
}

func TestSignUp_UnverifiedEmailOverwritten(t *testing.T) {
	existing := verifiedUser(t, "bob", "old-password")
	existing.IsVerified = false
	oldHash := existing.Password
	users := newFakeUsers(existing)
	h, codes, _ := newTestHandler(t, users)

	body := strings.NewReader(`{"username":"bob","email":"bob@example.com","password":"new-password"}`)
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/sign-up", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEqual(t, oldHash, existing.Password)
	require.NotEmpty(t, codes.codes["bob"])
}

func TestSignUp_MailerFailure(t *testing.T) {
	users := newFakeUsers()
	h, _, mailer := newTestHandler(t, users)
	mailer.fail = true

	body := strings.NewReader(`{"username":"carol","email":"carol@example.com","password":"pw123456"}`)
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/api/sign-up", body))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"Error sending verification email"}`, rec.Body.String())
}

func TestVerifyCode(t *testing.T) {
	user := verifiedUser(t, "dave", "pw")
	user.IsVerified = false
	users := newFakeUsers(user)
	h, codes, _ := newTestHandler(t, users)
	codes.codes["dave"] = "123456"

	t.Run("unknown user", func(t *testing.T) {
		body := strings.NewReader(`{"username":"nobody","code":"123456"}`)
		rec := httptest.NewRecorder()
		h.VerifyCode(rec, httptest.NewRequest(http.MethodPost, "/api/verify-code", body))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong code", func(t *testing.T) {
		body := strings.NewReader(`{"username":"dave","code":"999999"}`)
		rec := httptest.NewRecorder()
		h.VerifyCode(rec, httptest.NewRequest(http.MethodPost, "/api/verify-code", body))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.JSONEq(t, `{"success":false,"message":"Incorrect verification code"}`, rec.Body.String())
		require.False(t, user.IsVerified)
	})

	t.Run("correct code", func(t *testing.T) {
		body := strings.NewReader(`{"username":"dave","code":"123456"}`)
		rec := httptest.NewRecorder()
		h.VerifyCode(rec, httptest.NewRequest(http.MethodPost, "/api/verify-code", body))
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, user.IsVerified)
		require.Empty(t, codes.codes["dave"])
	})

	t.Run("expired code", func(t *testing.T) {
		body := strings.NewReader(`{"username":"dave","code":"123456"}`)
		rec := httptest.NewRecorder()
		h.VerifyCode(rec, httptest.NewRequest(http.MethodPost, "/api/verify-code", body))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignIn_FailureMessages(t *testing.T) {
	user := verifiedUser(t, "erin", "right-password")
	unverified := verifiedUser(t, "frank", "pw")
	unverified.IsVerified = false
	users := newFakeUsers(user, unverified)
	h, _, _ := newTestHandler(t, users)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"unknown identifier", `{"identifier":"ghost","password":"pw"}`,
			http.StatusUnauthorized, "No user found with this email or username"},
		{"unverified", `{"identifier":"frank","password":"pw"}`,
			http.StatusUnauthorized, "Please verify your account before logging in"},
		{"wrong password", `{"identifier":"erin","password":"wrong"}`,
			http.StatusUnauthorized, "Incorrect password"},
		{"missing fields", `{"identifier":"","password":""}`,
			http.StatusBadRequest, "Identifier and password are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.SignIn(rec, httptest.NewRequest(http.MethodPost, "/api/sign-in", strings.NewReader(tt.body)))
			require.Equal(t, tt.status, rec.Code)
			require.JSONEq(t, `{"success":false,"message":"`+tt.message+`"}`, rec.Body.String())
		})
	}
}

func TestSignIn_SetsSessionCookie(t *testing.T) {
	user := verifiedUser(t, "grace", "s3cret")
	users := newFakeUsers(user)
	h, _, _ := newTestHandler(t, users)

	body := strings.NewReader(`{"identifier":"grace","password":"s3cret"}`)
	rec := httptest.NewRecorder()
	h.SignIn(rec, httptest.NewRequest(http.MethodPost, "/api/sign-in", body))

	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	codec, err := NewTokenCodec("test-secret", time.Hour)
	require.NoError(t, err)
	claims, err := codec.Decode(cookies[0].Value)
	require.NoError(t, err)
	require.Equal(t, user.ID.Hex(), claims.UserID())
	require.Equal(t, "grace", claims.Username)
	require.True(t, claims.IsVerified)
	require.True(t, claims.IsAcceptingMessages)
}

func TestSession(t *testing.T) {
	users := newFakeUsers()
	h, _, _ := newTestHandler(t, users)

	// Without claims in context.
	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// With claims in context.
	user := verifiedUser(t, "heidi", "pw")
	codec, _ := NewTokenCodec("test-secret", time.Hour)
	tok, err := codec.Encode(user)
	require.NoError(t, err)
	claims, err := codec.Decode(tok)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req = req.WithContext(SetClaims(req.Context(), claims))
	rec = httptest.NewRecorder()
	h.Session(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"username":"heidi"`)
}
