package console_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/gov-console/console"
	"github.com/jrsteele09/gov-console/gate"
	"github.com/jrsteele09/gov-console/internal/config"
	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/mockapi"
	"github.com/jrsteele09/gov-console/session"
	"github.com/jrsteele09/gov-console/token"
	refreshrepofake "github.com/jrsteele09/gov-console/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/gov-console/users/repofake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	adminID       = "25433067"
	adminPassword = "Registry2026"
)

type testFixture struct {
	tokens   *token.Manager
	storeDir string
}

// syncBuffer is written from the watcher goroutine.
type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func setupTestFixture(t *testing.T, backend string) *testFixture {
	t.Helper()

	userRepo := fakeuserrepo.NewFakeUserRepo()
	require.NoError(t, mockapi.SeedUsers(userRepo, mockapi.DefaultAccounts()[:1], time.Now()))

	tokens, err := token.New(userRepo, refreshrepofake.NewFakeRefreshTokenRepo(), token.NewHMACSigner("console-test"))
	require.NoError(t, err)

	api, err := mockapi.New(userRepo, tokens, mockapi.WithBasePath("/api"))
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	f := &testFixture{tokens: tokens, storeDir: t.TempDir()}
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("API_BASE_URL", srv.URL+"/api")
	t.Setenv("STORE_BACKEND", backend)
	t.Setenv("STORE_PATH", f.storeDir)
	t.Setenv("STORE_NAMESPACE", "gov")
	t.Setenv("STORE_KEY", hex.EncodeToString(bytes.Repeat([]byte{7}, 32)))
	t.Setenv("SIGN_IN_PATH", "")
	t.Setenv("LANDING_PATH", "")
	t.Setenv("REFRESH_INTERVAL", "1h")
	return f
}

func newApp(t *testing.T) *console.App {
	t.Helper()
	app, err := console.New(config.New())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestLoginPersistsAcrossRuns(t *testing.T) {
	setupTestFixture(t, config.StoreBackendFile)
	ctx := context.Background()

	first := newApp(t)
	require.Equal(t, session.StatusUnauthenticated, first.Controller.State().Status)

	var out bytes.Buffer
	require.NoError(t, first.Login(ctx, &out, adminID, adminPassword, ""))
	require.Contains(t, out.String(), "Signed in as Government User (25433067)")
	require.Contains(t, out.String(), "Continue to /dashboard")
	first.Close()

	second := newApp(t)
	out.Reset()
	second.Status(&out)
	require.Contains(t, out.String(), "Status: authenticated")
	require.Contains(t, out.String(), "User:   Government User (25433067)")
	require.Contains(t, out.String(), "Renews: true")

	count, err := testutil.GatherAndCount(first.Registry, "gov_console_exchange_calls_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStoredSessionIsSealed(t *testing.T) {
	f := setupTestFixture(t, config.StoreBackendFile)

	app := newApp(t)
	require.NoError(t, app.Login(context.Background(), &bytes.Buffer{}, adminID, adminPassword, ""))

	raw, err := os.ReadFile(filepath.Join(f.storeDir, "session.json"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), app.Controller.AccessToken())
	require.NotContains(t, string(raw), adminID)
}

func TestLoginReturnsToRequestedPage(t *testing.T) {
	setupTestFixture(t, config.StoreBackendMemory)
	app := newApp(t)

	var out bytes.Buffer
	d := app.Open(&out, "/companies")
	require.Equal(t, gate.ActionRedirect, d.Action)
	require.Equal(t, "/login?from=%2Fcompanies", d.Location)
	require.Equal(t, "redirect /login?from=%2Fcompanies\n", out.String())

	out.Reset()
	require.NoError(t, app.Login(context.Background(), &out, adminID, adminPassword, d.Location))
	require.Contains(t, out.String(), "Continue to /companies")

	out.Reset()
	require.Equal(t, gate.ActionRender, app.Open(&out, "/companies").Action)
	require.Equal(t, "render /companies\n", out.String())

	// the sign-in page bounces an authenticated user to the landing page
	d = app.Open(&out, "/login")
	require.Equal(t, gate.ActionRedirect, d.Action)
	require.Equal(t, "/dashboard", d.Location)
}

func TestLoginPolicyFromConfig(t *testing.T) {
	setupTestFixture(t, config.StoreBackendMemory)
	t.Setenv("MIN_PASSWORD_LENGTH", "20")
	app := newApp(t)

	err := app.Login(context.Background(), &bytes.Buffer{}, adminID, adminPassword, "")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	require.Contains(t, err.Error(), "Password must be at least 20 characters")
}

func TestPendingAndForcedInvalidation(t *testing.T) {
	f := setupTestFixture(t, config.StoreBackendMemory)
	ctx := context.Background()
	app := newApp(t)

	_, err := app.Pending(ctx, &bytes.Buffer{})
	require.ErrorIs(t, err, interrors.ErrNotAuthenticated)

	require.NoError(t, app.Login(ctx, &bytes.Buffer{}, adminID, adminPassword, ""))

	var out bytes.Buffer
	companies, err := app.Pending(ctx, &out)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	require.Contains(t, out.String(), "Sunrise Solar Pvt Ltd")

	require.NoError(t, f.tokens.Logout(app.Controller.AccessToken()))

	_, err = app.Pending(ctx, &out)
	require.ErrorIs(t, err, interrors.ErrSessionExpired)
	require.Equal(t, session.StatusUnauthenticated, app.Controller.State().Status)
}

// recordingTransport remembers the path of every request it carries.
type recordingTransport struct {
	lock  sync.Mutex
	paths []string
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.lock.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.lock.Unlock()
	return http.DefaultTransport.RoundTrip(req)
}

func (r *recordingTransport) seen() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.paths...)
}

func TestHTTPClientReachesEveryCall(t *testing.T) {
	setupTestFixture(t, config.StoreBackendMemory)
	ctx := context.Background()

	transport := &recordingTransport{}
	app, err := console.New(config.New(), console.WithHTTPClient(&http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
	}))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.NoError(t, app.Login(ctx, &bytes.Buffer{}, adminID, adminPassword, ""))
	_, err = app.Pending(ctx, &bytes.Buffer{})
	require.NoError(t, err)

	require.Equal(t, []string{"/api/gov/auth/login", "/api/gov/pending"}, transport.seen())
}

func TestSQLiteBackend(t *testing.T) {
	f := setupTestFixture(t, config.StoreBackendSQLite)
	ctx := context.Background()

	first := newApp(t)
	require.NoError(t, first.Login(ctx, &bytes.Buffer{}, adminID, adminPassword, ""))
	first.Close()

	_, err := os.Stat(filepath.Join(f.storeDir, "session.db"))
	require.NoError(t, err)

	second := newApp(t)
	require.True(t, second.Controller.State().IsAuthenticated())
	require.NoError(t, second.Logout(ctx, &bytes.Buffer{}))
	second.Close()

	third := newApp(t)
	require.Equal(t, session.StatusUnauthenticated, third.Controller.State().Status)
}

func TestWatchFollowsOtherProcess(t *testing.T) {
	setupTestFixture(t, config.StoreBackendFile)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := newApp(t)
	watcher := newApp(t)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx, out) }()

	require.NoError(t, writer.Login(ctx, &bytes.Buffer{}, adminID, adminPassword, ""))
	require.Eventually(t, func() bool {
		if watcher.Controller.State().IsAuthenticated() {
			return true
		}
		// rewrite until the watcher has registered
		_ = writer.Store.Save(writer.Controller.State().Session)
		return false
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, writer.Controller.AccessToken(), watcher.Controller.AccessToken())

	require.NoError(t, writer.Logout(ctx, &bytes.Buffer{}))
	require.Eventually(t, func() bool {
		return watcher.Controller.State().Status == session.StatusUnauthenticated
	}, 5*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "unauthenticated")
	}, time.Second, 10*time.Millisecond)
	require.Contains(t, out.String(), "authenticated: Government User (25433067)")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchRequiresFileBackend(t *testing.T) {
	setupTestFixture(t, config.StoreBackendMemory)
	app := newApp(t)
	require.Error(t, app.Watch(context.Background(), &bytes.Buffer{}))
}

func TestNewRejectsBadConfig(t *testing.T) {
	setupTestFixture(t, "carrier-pigeon")
	_, err := console.New(config.New())
	require.Error(t, err)

	setupTestFixture(t, config.StoreBackendMemory)
	t.Setenv("STORE_KEY", "too-short")
	_, err = console.New(config.New())
	require.Error(t, err)

	_, err = console.New(nil)
	require.Error(t, err)
}
