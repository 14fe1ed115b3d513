package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/gov-console/exchange"
	"github.com/jrsteele09/gov-console/session"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	server   *httptest.Server
	client   *exchange.Client
	lock     sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
	status   int
	reply    string
}

func setupTestFixture(t *testing.T, status int, reply string, options ...exchange.Option) *testFixture {
	t.Helper()
	f := &testFixture{status: status, reply: reply}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.lock.Lock()
		f.requests = append(f.requests, r)
		f.bodies = append(f.bodies, body)
		status, reply := f.status, f.reply
		f.lock.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(f.server.Close)

	options = append([]exchange.Option{exchange.WithNowTime(func() time.Time { return fixedNow })}, options...)
	client, err := exchange.New(f.server.URL+"/api/", options...)
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *testFixture) lastRequest(t *testing.T) (*http.Request, map[string]any) {
	t.Helper()
	f.lock.Lock()
	defer f.lock.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func (f *testFixture) requestCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.requests)
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestLoginHappyPath(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"token":"abc","user":{"id":"1","userId":"25433067"}}`)

	sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.NoError(t, err)
	require.Equal(t, "abc", sess.AccessToken)
	require.Equal(t, "", sess.RefreshToken)
	require.Equal(t, "1", sess.User.ID)
	require.Equal(t, "25433067", sess.User.LoginID)
	require.Equal(t, "25433067", sess.User.DisplayName)
	require.Equal(t, fixedNow, sess.IssuedAt)
	require.NoError(t, sess.Validate())

	req, body := f.lastRequest(t)
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/api/gov/auth/login", req.URL.Path)
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.NotEmpty(t, req.Header.Get(exchange.RequestIDHeader))
	require.Equal(t, "25433067", body["userId"])
	require.Equal(t, "Pass1234", body["password"])
}

func TestLoginMissingToken(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"success":true,"message":"ok"}`)

	sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.Nil(t, sess)
	require.ErrorIs(t, err, session.ErrProtocolViolation)
}

func TestTokenPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"root token wins", `{"token":"root","accessToken":"rootAccess","data":{"token":"data","accessToken":"dataAccess"}}`, "root"},
		{"data token", `{"accessToken":"rootAccess","data":{"token":"data","accessToken":"dataAccess"}}`, "data"},
		{"data access token", `{"accessToken":"rootAccess","data":{"accessToken":"dataAccess"}}`, "dataAccess"},
		{"root access token", `{"accessToken":"rootAccess"}`, "rootAccess"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, http.StatusOK, tt.reply)
			sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
			require.NoError(t, err)
			require.Equal(t, tt.want, sess.AccessToken)

			renewed, err := f.client.Renew(context.Background(), "r1")
			require.NoError(t, err)
			require.Equal(t, tt.want, renewed.AccessToken)
		})
	}
}

func TestRefreshTokenAndUserFromData(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"success":true,"data":{"token":"abc","refreshToken":"r1",
		"user":{"id":7,"userId":"25433067","name":"Jane Official","role":"admin","email":"jane@gov.example"}}}`)

	sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.NoError(t, err)
	require.Equal(t, "r1", sess.RefreshToken)
	require.Equal(t, session.User{
		ID: "7", LoginID: "25433067", DisplayName: "Jane Official", Role: "admin", Email: "jane@gov.example",
	}, sess.User)
}

func TestUserFromTokenClaims(t *testing.T) {
	issued := time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.MapClaims{
		"sub":    "42",
		"userId": "25433067",
		"name":   "Claims User",
		"roles":  []string{"reviewer", "observer"},
		"iat":    issued.Unix(),
	})
	f := setupTestFixture(t, http.StatusOK, `{"token":"`+token+`"}`)

	sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.NoError(t, err)
	require.Equal(t, "42", sess.User.ID)
	require.Equal(t, "Claims User", sess.User.DisplayName)
	require.Equal(t, "reviewer", sess.User.Role)
	require.True(t, issued.Equal(sess.IssuedAt))
}

func TestLoginFallbackUser(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"token":"opaque"}`)

	sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.NoError(t, err)
	require.Equal(t, session.User{ID: "25433067", LoginID: "25433067", DisplayName: "25433067"}, sess.User)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		reply   string
		want    error
		message string
	}{
		{"rejected credentials", http.StatusUnauthorized, `{"success":false,"message":"Invalid user ID or password"}`, session.ErrInvalidCredentials, "Invalid user ID or password"},
		{"bad request without body", http.StatusBadRequest, ``, session.ErrInvalidCredentials, "request failed with status 400"},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, session.ErrNetwork, "server error (status 502)"},
		{"success false", http.StatusOK, `{"success":false,"message":"Account locked"}`, session.ErrInvalidCredentials, "Account locked"},
		{"malformed body", http.StatusOK, `{"token":`, session.ErrNetwork, "malformed response from server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, tt.status, tt.reply)

			sess, err := f.client.Login(context.Background(), "25433067", "Pass1234")
			require.Nil(t, sess)
			require.ErrorIs(t, err, tt.want)

			var authErr *session.AuthError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tt.message, authErr.Message)
			require.Equal(t, tt.status, authErr.Status)
		})
	}
}

func TestLoginUnreachable(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{}`)
	f.server.Close()

	_, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.ErrorIs(t, err, session.ErrNetwork)
}

func TestRenew(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"data":{"token":"def","refreshToken":"r2"}}`)

	sess, err := f.client.Renew(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "def", sess.AccessToken)
	require.Equal(t, "r2", sess.RefreshToken)
	require.True(t, sess.User.IsZero())

	req, body := f.lastRequest(t)
	require.Equal(t, "/api/gov/auth/refresh", req.URL.Path)
	require.Equal(t, "r1", body["refreshToken"])
}

func TestRenewRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		f := setupTestFixture(t, status, `{"message":"expired"}`)
		_, err := f.client.Renew(context.Background(), "r1")
		require.ErrorIs(t, err, session.ErrSessionExpired)
	}

	f := setupTestFixture(t, http.StatusOK, `{"success":true}`)
	_, err := f.client.Renew(context.Background(), "r1")
	require.ErrorIs(t, err, session.ErrProtocolViolation)

	_, err = f.client.Renew(context.Background(), "")
	require.ErrorIs(t, err, session.ErrSessionExpired)
}

func TestNotifyLogout(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"success":true}`)

	f.client.NotifyLogout(context.Background(), "abc")

	req, _ := f.lastRequest(t)
	require.Equal(t, "/api/gov/auth/logout", req.URL.Path)
	require.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
}

func TestNotifyLogoutSwallowsErrors(t *testing.T) {
	var seen []error
	f := setupTestFixture(t, http.StatusInternalServerError, `oops`,
		exchange.WithObserver(func(op string, err error, _ time.Duration) {
			if op == exchange.OpLogout {
				seen = append(seen, err)
			}
		}))

	require.NotPanics(t, func() { f.client.NotifyLogout(context.Background(), "abc") })
	require.Len(t, seen, 1)
	require.ErrorIs(t, seen[0], session.ErrNetwork)

	// nothing to notify without a token
	f.client.NotifyLogout(context.Background(), "")
	require.Equal(t, 1, f.requestCount())
}

func TestObserverSeesOutcome(t *testing.T) {
	type call struct {
		op  string
		err error
	}
	var calls []call
	f := setupTestFixture(t, http.StatusOK, `{"token":"abc"}`,
		exchange.WithObserver(func(op string, err error, _ time.Duration) {
			calls = append(calls, call{op, err})
		}))

	_, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.NoError(t, err)
	require.Equal(t, []call{{exchange.OpLogin, nil}}, calls)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	f := setupTestFixture(t, http.StatusOK, `{"token":"abc"}`, exchange.WithRateLimiter(exchange.PerMinute(1)))

	_, err := f.client.Login(context.Background(), "25433067", "Pass1234")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.client.Login(ctx, "25433067", "Pass1234")
	require.ErrorIs(t, err, session.ErrNetwork)
	require.Equal(t, 1, f.requestCount())
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := exchange.New("ftp://example.com")
	require.Error(t, err)

	_, err = exchange.New("http://")
	require.Error(t, err)

	_, err = exchange.New("https://registry.example.com/api")
	require.NoError(t, err)
}
