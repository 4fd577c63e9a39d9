package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/ErlanBelekov/tourbook/internal/token"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/handler"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/ErlanBelekov/tourbook/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---- fakes ----

// fakeAuthUsecase implements the unexported authUsecaser interface via method matching.
type fakeAuthUsecase struct {
	signup         func(ctx context.Context, in usecase.SignupInput) (*usecase.Session, error)
	login          func(ctx context.Context, email, password string) (*usecase.Session, error)
	requestReset   func(ctx context.Context, email, resetURLBase string) error
	resetPassword  func(ctx context.Context, rawToken, password, confirm string) (*usecase.Session, error)
	updatePassword func(ctx context.Context, userID, current, password, confirm string) (*usecase.Session, error)
}

func (f *fakeAuthUsecase) Signup(ctx context.Context, in usecase.SignupInput) (*usecase.Session, error) {
	return f.signup(ctx, in)
}

func (f *fakeAuthUsecase) Login(ctx context.Context, email, password string) (*usecase.Session, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAuthUsecase) RequestPasswordReset(ctx context.Context, email, resetURLBase string) error {
	return f.requestReset(ctx, email, resetURLBase)
}

func (f *fakeAuthUsecase) ResetPassword(ctx context.Context, rawToken, password, confirm string) (*usecase.Session, error) {
	return f.resetPassword(ctx, rawToken, password, confirm)
}

func (f *fakeAuthUsecase) UpdatePassword(ctx context.Context, userID, current, password, confirm string) (*usecase.Session, error) {
	return f.updatePassword(ctx, userID, current, password, confirm)
}

// stubVerifier accepts "valid-<userID>" tokens.
type stubVerifier struct{}

func (stubVerifier) Verify(raw string) (*token.Claims, error) {
	id, ok := strings.CutPrefix(raw, "valid-")
	if !ok {
		return nil, token.ErrInvalid
	}
	return &token.Claims{SubjectID: id, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type stubUsers map[string]*domain.User

func (s stubUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// ---- helpers ----

var (
	testLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	jonas = &domain.User{ID: "u1", Name: "Jonas Schmedtmann", Email: "jonas@example.com", Role: domain.RoleUser, Active: true}
	admin = &domain.User{ID: "a1", Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Active: true}
)

// baseEngine has the normalizer, a stub error page and an authenticator that
// knows jonas and admin.
func baseEngine() (*gin.Engine, *middleware.Authenticator) {
	n := middleware.NewNormalizer("production", testLogger)
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New(middleware.ErrorTemplate).Parse(`{{.msg}}`)))
	r.Use(n.Handler())
	auth := middleware.NewAuthenticator(stubVerifier{}, stubUsers{"u1": jonas, "a1": admin}, testLogger)
	return r, auth
}

func newAuthEngine(uc *fakeAuthUsecase) *gin.Engine {
	h := handler.NewAuthHandler(uc, handler.CookieConfig{TTL: 90 * 24 * time.Hour, Secure: true}, "https://tourbook.example", testLogger)

	r, auth := baseEngine()
	users := r.Group("/api/v1/users")
	users.POST("/signup", h.Signup)
	users.POST("/login", h.Login)
	users.GET("/logout", h.Logout)
	users.POST("/forgotPassword", h.ForgotPassword)
	users.PATCH("/resetPassword/:token", h.ResetPassword)
	users.PATCH("/updateMyPassword", auth.Protect(), h.UpdatePassword)
	return r
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token"`
	Results int    `json:"results"`
	Data    struct {
		User  map[string]any   `json:"user"`
		Users []map[string]any `json:"users"`
	} `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return e
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func session(u *domain.User) *usecase.Session {
	return &usecase.Session{User: u, Token: "signed-" + u.ID}
}

// ---- Signup ----

func TestSignup_Returns201WithTokenAndCookie(t *testing.T) {
	var got usecase.SignupInput
	uc := &fakeAuthUsecase{signup: func(_ context.Context, in usecase.SignupInput) (*usecase.Session, error) {
		got = in
		return session(jonas), nil
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/signup",
		`{"name":"Jonas Schmedtmann","email":"jonas@example.com","password":"pass1234","passwordConfirm":"pass1234"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	e := decode(t, w)
	if e.Status != "success" || e.Token != "signed-u1" {
		t.Errorf("unexpected body: %+v", e)
	}
	if e.Data.User["email"] != "jonas@example.com" {
		t.Errorf("user = %v", e.Data.User)
	}
	if _, leaked := e.Data.User["PasswordHash"]; leaked {
		t.Error("password hash in response")
	}
	if got.PasswordConfirm != "pass1234" || got.WelcomeURL != "https://tourbook.example/me" {
		t.Errorf("usecase input = %+v", got)
	}

	c := sessionCookie(t, w)
	if c.Value != "signed-u1" || !c.HttpOnly || !c.Secure {
		t.Errorf("cookie = %+v", c)
	}
	if c.MaxAge != int((90 * 24 * time.Hour).Seconds()) {
		t.Errorf("cookie max-age = %d", c.MaxAge)
	}
}

func TestSignup_InvalidJSON_Returns400(t *testing.T) {
	w := do(newAuthEngine(&fakeAuthUsecase{}), http.MethodPost, "/api/v1/users/signup", `{bad json}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSignup_DuplicateEmail_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{signup: func(context.Context, usecase.SignupInput) (*usecase.Session, error) {
		return nil, &apperr.DuplicateKeyError{Field: "email", Value: "jonas@example.com"}
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/signup", `{"email":"jonas@example.com"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decode(t, w).Message; msg != "Duplicate field value for 'email': 'jonas@example.com'. Please use another value!" {
		t.Errorf("message = %q", msg)
	}
}

// ---- Login / Logout ----

func TestLogin_Unauthorized(t *testing.T) {
	uc := &fakeAuthUsecase{login: func(context.Context, string, string) (*usecase.Session, error) {
		return nil, apperr.Unauthorized("Incorrect email or password")
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/login", `{"email":"jonas@example.com","password":"nope"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if e := decode(t, w); e.Status != "fail" || e.Message != "Incorrect email or password" {
		t.Errorf("unexpected body: %+v", e)
	}
}

func TestLogin_Success(t *testing.T) {
	uc := &fakeAuthUsecase{login: func(_ context.Context, email, password string) (*usecase.Session, error) {
		if email != "jonas@example.com" || password != "pass1234" {
			t.Errorf("login(%q, %q)", email, password)
		}
		return session(jonas), nil
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/login", `{"email":"jonas@example.com","password":"pass1234"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if sessionCookie(t, w).Value != "signed-u1" {
		t.Error("cookie not set")
	}
}

func TestLogout_SetsMarkerCookie(t *testing.T) {
	w := do(newAuthEngine(&fakeAuthUsecase{}), http.MethodGet, "/api/v1/users/logout", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	c := sessionCookie(t, w)
	if c.Value != middleware.LoggedOutMarker || c.MaxAge != 10 || !c.HttpOnly {
		t.Errorf("cookie = %+v", c)
	}
}

// ---- ForgotPassword ----

func TestForgotPassword_SendsResetBase(t *testing.T) {
	var gotBase string
	uc := &fakeAuthUsecase{requestReset: func(_ context.Context, _, base string) error {
		gotBase = base
		return nil
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"jonas@example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotBase != "https://tourbook.example/api/v1/users/resetPassword" {
		t.Errorf("reset base = %q", gotBase)
	}
	if msg := decode(t, w).Message; msg != "Token sent to email!" {
		t.Errorf("message = %q", msg)
	}
}

func TestForgotPassword_UnknownEmailLooksTheSame(t *testing.T) {
	uc := &fakeAuthUsecase{requestReset: func(context.Context, string, string) error {
		return apperr.Wrap(apperr.KindNotFound, "There is no user with that email address.", domain.ErrUserNotFound)
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"nobody@example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if msg := decode(t, w).Message; msg != "Token sent to email!" {
		t.Errorf("message = %q", msg)
	}
}

func TestForgotPassword_EmailFailure_Returns500(t *testing.T) {
	uc := &fakeAuthUsecase{requestReset: func(context.Context, string, string) error {
		return apperr.Internal("There was an error sending the email. Try again later!", errors.New("smtp down"))
	}}

	w := do(newAuthEngine(uc), http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"jonas@example.com"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if msg := decode(t, w).Message; msg != "There was an error sending the email. Try again later!" {
		t.Errorf("message = %q", msg)
	}
}

func TestForgotPassword_InvalidEmail_Returns400(t *testing.T) {
	w := do(newAuthEngine(&fakeAuthUsecase{}), http.MethodPost, "/api/v1/users/forgotPassword", `{"email":"nope"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decode(t, w).Message; msg != "Invalid input data. Please provide a valid email" {
		t.Errorf("message = %q", msg)
	}
}

// ---- ResetPassword ----

func TestResetPassword_PassesTokenFromPath(t *testing.T) {
	var gotToken string
	uc := &fakeAuthUsecase{resetPassword: func(_ context.Context, raw, _, _ string) (*usecase.Session, error) {
		gotToken = raw
		return session(jonas), nil
	}}

	w := do(newAuthEngine(uc), http.MethodPatch, "/api/v1/users/resetPassword/abc123",
		`{"password":"newpass123","passwordConfirm":"newpass123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotToken != "abc123" {
		t.Errorf("token = %q", gotToken)
	}
}

func TestResetPassword_InvalidToken_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{resetPassword: func(context.Context, string, string, string) (*usecase.Session, error) {
		return nil, apperr.Wrap(apperr.KindBadRequest, "Token is invalid or has expired", domain.ErrTokenInvalid)
	}}

	w := do(newAuthEngine(uc), http.MethodPatch, "/api/v1/users/resetPassword/abc123", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if msg := decode(t, w).Message; msg != "Token is invalid or has expired" {
		t.Errorf("message = %q", msg)
	}
}

// ---- UpdatePassword ----

func TestUpdatePassword_RequiresLogin(t *testing.T) {
	uc := &fakeAuthUsecase{updatePassword: func(context.Context, string, string, string, string) (*usecase.Session, error) {
		t.Error("usecase called without a session")
		return nil, nil
	}}

	w := do(newAuthEngine(uc), http.MethodPatch, "/api/v1/users/updateMyPassword", `{}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUpdatePassword_UsesCurrentUser(t *testing.T) {
	var gotID, gotCurrent string
	uc := &fakeAuthUsecase{updatePassword: func(_ context.Context, id, current, _, _ string) (*usecase.Session, error) {
		gotID, gotCurrent = id, current
		return session(jonas), nil
	}}

	w := do(newAuthEngine(uc), http.MethodPatch, "/api/v1/users/updateMyPassword",
		`{"passwordCurrent":"pass1234","password":"newpass123","passwordConfirm":"newpass123"}`,
		"Authorization", "Bearer valid-u1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if gotID != "u1" || gotCurrent != "pass1234" {
		t.Errorf("usecase got id=%q current=%q", gotID, gotCurrent)
	}
}
