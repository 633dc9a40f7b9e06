package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
)

// Backend is an in-process stand-in for the hosted service. It speaks the
// auth and table routes the client uses, stores rows in an in-memory SQLite
// database and signs HS256 access tokens.
type Backend struct {
	URL     string
	AnonKey string

	srv         *httptest.Server
	store       *backendStore
	secret      []byte
	autoConfirm bool
	tokenTTL    time.Duration

	mu       gosync.Mutex
	failures map[string][]failure
	requests []Request
	upserts  [][]model.OrderUpdate
}

// Request is one request the backend received.
type Request struct {
	Method string
	Path   string
	Query  string
	Prefer string
}

type failure struct {
	status  int
	message string
}

// Option configures a Backend.
type Option func(*Backend)

// WithAutoConfirm makes sign-up return a session immediately instead of
// waiting for email confirmation.
func WithAutoConfirm() Option {
	return func(b *Backend) { b.autoConfirm = true }
}

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokenTTL = d }
}

// NewBackend starts a backend that is shut down when the test ends.
func NewBackend(t testing.TB, opts ...Option) *Backend {
	t.Helper()

	store, err := openStore()
	require.NoError(t, err)

	b := &Backend{
		store:    store,
		secret:   []byte("test-jwt-secret-" + uuid.NewString()),
		tokenTTL: time.Hour,
		failures: make(map[string][]failure),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.AnonKey, err = b.sign(jwt.MapClaims{"role": "anon", "iss": "testutil"})
	require.NoError(t, err)

	b.srv = httptest.NewServer(b.routes())
	b.URL = b.srv.URL

	t.Cleanup(func() {
		b.srv.Close()
		store.Close()
	})
	return b
}

// NewKeyring returns an empty in-memory keyring.
func NewKeyring() keyring.Keyring {
	return keyring.NewArrayKeyring(nil)
}

// CreateUser registers a confirmed user and returns it.
func (b *Backend) CreateUser(t testing.TB, email, password string) model.User {
	t.Helper()
	id := uuid.New()
	err := b.store.insertUser(context.Background(), userRow{
		ID:        id.String(),
		Email:     email,
		Password:  password,
		Confirmed: true,
	})
	require.NoError(t, err)
	return model.User{ID: id, Email: email}
}

// Confirm marks the account as confirmed, as following the emailed link
// would.
func (b *Backend) Confirm(t testing.TB, email string) {
	t.Helper()
	require.NoError(t, b.store.confirmUser(context.Background(), email))
}

// SeedTodos inserts one todo per text for the user, ordered as given.
func (b *Backend) SeedTodos(t testing.TB, userID string, texts ...string) []model.Todo {
	t.Helper()
	out := make([]model.Todo, 0, len(texts))
	for i, text := range texts {
		todo, err := b.store.insertTodo(context.Background(), model.Todo{
			Text:   text,
			Order:  i,
			UserID: userID,
		})
		require.NoError(t, err)
		out = append(out, todo)
	}
	return out
}

// Todos returns the stored todos of the user ordered by id.
func (b *Backend) Todos(t testing.TB, userID string) []model.Todo {
	t.Helper()
	todos, err := b.store.selectTodos(context.Background(), userID)
	require.NoError(t, err)
	return todos
}

// IssueToken signs an access token for the user expiring after ttl. A
// negative ttl yields an already expired token.
func (b *Backend) IssueToken(t testing.TB, user model.User, ttl time.Duration) string {
	t.Helper()
	tok, err := b.accessToken(user.ID.String(), user.Email, ttl)
	require.NoError(t, err)
	return tok
}

// FailNext makes the next request matching method and path fail with status
// and message. Failures queue up per route.
func (b *Backend) FailNext(method, path string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.failures[key] = append(b.failures[key], failure{status: status, message: message})
}

// Requests returns every request received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Upserts returns the bodies of every accepted order upsert.
func (b *Backend) Upserts() [][]model.OrderUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]model.OrderUpdate(nil), b.upserts...)
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", b.handleToken)
	mux.HandleFunc("POST /auth/v1/signup", b.handleSignUp)
	mux.HandleFunc("POST /auth/v1/logout", b.handleLogout)
	mux.HandleFunc("GET /auth/v1/user", b.handleUser)
	mux.HandleFunc("GET /rest/v1/todos", b.handleSelect)
	mux.HandleFunc("POST /rest/v1/todos", b.handleInsertOrUpsert)
	mux.HandleFunc("PATCH /rest/v1/todos", b.handleUpdate)
	mux.HandleFunc("DELETE /rest/v1/todos", b.handleDelete)
	return b.intercept(mux)
}

// intercept records the request, checks the API key and serves queued
// failures before the route runs.
func (b *Backend) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Prefer: r.Header.Get("Prefer"),
		})
		key := r.Method + " " + r.URL.Path
		var fail *failure
		if queued := b.failures[key]; len(queued) > 0 {
			fail = &queued[0]
			b.failures[key] = queued[1:]
		}
		b.mu.Unlock()

		if r.Header.Get("apikey") != b.AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "Invalid API key",
				"hint":    "Double check your Supabase `anon` or `service_role` API key.",
			})
			return
		}
		if fail != nil {
			writeJSON(w, fail.status, map[string]string{"message": fail.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (b *Backend) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

func (b *Backend) accessToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	return b.sign(accessClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

var errAnonymous = errors.New("anonymous request")

// caller verifies the bearer token. The anon key yields errAnonymous.
func (b *Backend) caller(r *http.Request) (*accessClaims, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == b.AnonKey {
		return nil, errAnonymous
	}
	var c accessClaims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c.Role != "authenticated" || c.Subject == "" {
		return nil, errAnonymous
	}
	return &c, nil
}

type userJSON struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Aud   string `json:"aud"`
	Role  string `json:"role"`
}

type sessionJSON struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         userJSON `json:"user"`
}

func toUserJSON(u userRow) userJSON {
	return userJSON{ID: u.ID, Email: u.Email, Aud: "authenticated", Role: "authenticated"}
}

func (b *Backend) newSession(ctx context.Context, u userRow) (sessionJSON, error) {
	tok, err := b.accessToken(u.ID, u.Email, b.tokenTTL)
	if err != nil {
		return sessionJSON{}, err
	}
	refresh := uuid.NewString()
	if err := b.store.saveRefreshToken(ctx, refresh, u.ID); err != nil {
		return sessionJSON{}, err
	}
	return sessionJSON{
		AccessToken:  tok,
		TokenType:    "bearer",
		ExpiresIn:    int64(b.tokenTTL / time.Second),
		ExpiresAt:    time.Now().Add(b.tokenTTL).Unix(),
		RefreshToken: refresh,
		User:         toUserJSON(u),
	}, nil
}

func (b *Backend) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}

	var u userRow
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		var err error
		u, err = b.store.userByEmail(ctx, body.Email)
		if err != nil || u.Password != body.Password {
			writeAuthError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			return
		}
		if !u.Confirmed {
			writeAuthError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
			return
		}
	case "refresh_token":
		userID, err := b.store.useRefreshToken(ctx, body.RefreshToken)
		if err != nil {
			writeAuthError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		if u, err = b.store.userByID(ctx, userID); err != nil {
			writeAuthError(w, http.StatusBadRequest, "user_not_found", "User not found")
			return
		}
	default:
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "unsupported_grant_type: "+grant)
		return
	}

	sess, err := b.newSession(ctx, u)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (b *Backend) handleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	if body.Email == "" {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "To signup, please provide your email")
		return
	}
	if len(body.Password) < 6 {
		writeAuthError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
		return
	}
	if _, err := b.store.userByEmail(ctx, body.Email); err == nil {
		writeAuthError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}

	u := userRow{
		ID:        uuid.NewString(),
		Email:     body.Email,
		Password:  body.Password,
		Confirmed: b.autoConfirm,
	}
	if err := b.store.insertUser(ctx, u); err != nil {
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}

	if !b.autoConfirm {
		writeJSON(w, http.StatusOK, toUserJSON(u))
		return
	}
	sess, err := b.newSession(ctx, u)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := b.caller(r)
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: "+err.Error())
		return
	}
	if err := b.store.revokeTokens(r.Context(), c.Subject); err != nil {
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleUser(w http.ResponseWriter, r *http.Request) {
	c, err := b.caller(r)
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: "+err.Error())
		return
	}
	u, err := b.store.userByID(r.Context(), c.Subject)
	if err != nil {
		writeAuthError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(u))
}

// tableCaller resolves the caller of a table request. An invalid token is
// answered here; anonymous callers get an empty subject and see no rows.
func (b *Backend) tableCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := b.caller(r)
	if errors.Is(err, errAnonymous) {
		return "", true
	}
	if err != nil {
		msg := "JWSError JWSInvalidSignature"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "JWT expired"
		}
		writeTableError(w, http.StatusUnauthorized, "PGRST301", msg)
		return "", false
	}
	return c.Subject, true
}

func (b *Backend) handleSelect(w http.ResponseWriter, r *http.Request) {
	userID, ok := b.tableCaller(w, r)
	if !ok {
		return
	}
	if userID == "" {
		writeJSON(w, http.StatusOK, []model.Todo{})
		return
	}
	todos, err := b.store.selectTodos(r.Context(), userID)
	if err != nil {
		writeTableError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (b *Backend) handleInsertOrUpsert(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
		b.handleUpsert(w, r)
		return
	}
	b.handleInsert(w, r)
}

func (b *Backend) handleInsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := b.tableCaller(w, r)
	if !ok {
		return
	}

	var body struct {
		Text      *string `json:"text"`
		Completed bool    `json:"completed"`
		Order     int     `json:"order"`
		UserID    string  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeTableError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}
	if userID == "" || body.UserID != userID {
		status := http.StatusForbidden
		if userID == "" {
			status = http.StatusUnauthorized
		}
		writeTableError(w, status, "42501", `new row violates row-level security policy for table "todos"`)
		return
	}
	if body.Text == nil {
		writeTableError(w, http.StatusBadRequest, "23502", `null value in column "text" of relation "todos" violates not-null constraint`)
		return
	}

	todo, err := b.store.insertTodo(r.Context(), model.Todo{
		Text:      *body.Text,
		Completed: body.Completed,
		Order:     body.Order,
		UserID:    userID,
	})
	if err != nil {
		writeTableError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		writeJSON(w, http.StatusCreated, []model.Todo{todo})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (b *Backend) handleUpsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := b.tableCaller(w, r)
	if !ok {
		return
	}

	var rows []struct {
		ID    *int64 `json:"id"`
		Order *int   `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeTableError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}

	updates := make([]model.OrderUpdate, 0, len(rows))
	for _, row := range rows {
		if row.ID == nil || row.Order == nil {
			writeTableError(w, http.StatusBadRequest, "23502", `null value in column "text" of relation "todos" violates not-null constraint`)
			return
		}
		updates = append(updates, model.OrderUpdate{ID: *row.ID, Order: *row.Order})
	}

	if userID == "" {
		writeTableError(w, http.StatusUnauthorized, "42501", `new row violates row-level security policy for table "todos"`)
		return
	}
	err := b.store.upsertOrders(r.Context(), userID, updates)
	if errors.Is(err, errNoRow) {
		writeTableError(w, http.StatusBadRequest, "23502", `null value in column "text" of relation "todos" violates not-null constraint`)
		return
	}
	if err != nil {
		writeTableError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}

	b.mu.Lock()
	b.upserts = append(b.upserts, updates)
	b.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

type todoPatch struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
	Order     *int    `json:"order"`
}

func (b *Backend) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := b.tableCaller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var patch todoPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeTableError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}
	if userID != "" {
		if err := b.store.updateTodo(r.Context(), userID, id, patch); err != nil {
			writeTableError(w, http.StatusInternalServerError, "XX000", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := b.tableCaller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if userID != "" {
		if err := b.store.deleteTodo(r.Context(), userID, id); err != nil {
			writeTableError(w, http.StatusInternalServerError, "XX000", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// idParam reads an "id=eq.N" filter.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("id")
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "eq."), 10, 64)
	if err != nil || !strings.HasPrefix(raw, "eq.") {
		writeTableError(w, http.StatusBadRequest, "PGRST100", `failed to parse filter (`+raw+`)`)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAuthError uses the auth API's error shape, whose code is numeric.
func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"code":       status,
		"error_code": code,
		"msg":        msg,
	})
}

func writeTableError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"code":    code,
		"message": msg,
		"details": nil,
		"hint":    nil,
	})
}
