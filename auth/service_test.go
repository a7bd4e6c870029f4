package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-contractor-session/apiclient"
	"github.com/jrsteele09/go-contractor-session/auth"
	"github.com/jrsteele09/go-contractor-session/contractor"
	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/jrsteele09/go-contractor-session/identity/idpfake"
	"github.com/jrsteele09/go-contractor-session/internal/backendfake"
	internalerrors "github.com/jrsteele09/go-contractor-session/internal/errors"
	"github.com/jrsteele09/go-contractor-session/lifecycle"
	"github.com/jrsteele09/go-contractor-session/session"
	"github.com/jrsteele09/go-contractor-session/tokenrefresh"
	"github.com/stretchr/testify/require"
)

const (
	testEmail       = "jordan.sparky@example.com"
	testPassword    = "live-wire-240"
	testDisplayName = "Jordan Sparks"
)

type testFixture struct {
	idp         *idpfake.FakeProvider
	backend     *backendfake.Server
	server      *httptest.Server
	bridge      *session.Bridge
	contractors *contractor.Service
	loop        *tokenrefresh.Loop
	service     *auth.Service
}

func setupTestFixture(t *testing.T, options ...backendfake.Option) *testFixture {
	t.Helper()

	f := &testFixture{idp: idpfake.NewFakeProvider()}
	f.backend = backendfake.New(f.idp.Verify, options...)
	f.server = httptest.NewServer(f.backend)
	t.Cleanup(f.server.Close)

	credentials := credential.NewProvider(f.idp, credential.WithWaitTimeout(100*time.Millisecond))
	httpClient := apiclient.NewHTTPClient(5 * time.Second)
	api := apiclient.New(f.server.URL, credentials,
		apiclient.WithHTTPClient(httpClient),
		apiclient.WithInterceptor(lifecycle.NewInterceptor(nil)))

	f.bridge = session.NewBridge(f.server.URL, httpClient, credentials)
	f.contractors = contractor.NewService(api)
	f.loop = tokenrefresh.New(credentials, tokenrefresh.WithInterval(time.Hour))
	t.Cleanup(f.loop.Stop)

	f.service = auth.NewService(auth.Deps{
		Identity:    f.idp,
		Credentials: credentials,
		Session:     f.bridge,
		Contractors: f.contractors,
		Refresh:     f.loop,
	}, auth.WithRestoreTimeout(time.Second))
	return f
}

func (f *testFixture) register(t *testing.T) identity.Subject {
	t.Helper()
	subject, err := f.service.Register(context.Background(), auth.RegisterParams{
		Email:       testEmail,
		Password:    testPassword,
		DisplayName: testDisplayName,
	})
	require.NoError(t, err)
	return subject
}

func mobileRequests(reqs []backendfake.Request) []backendfake.Request {
	var out []backendfake.Request
	for _, r := range reqs {
		if strings.HasPrefix(r.Path, "/mobile/") {
			out = append(out, r)
		}
	}
	return out
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type recordingLoop struct {
	calls *callLog
	*tokenrefresh.Loop
}

func (l *recordingLoop) Start(ctx context.Context) {
	l.calls.add("refresh.start")
	l.Loop.Start(ctx)
}

func (l *recordingLoop) Stop() {
	l.calls.add("refresh.stop")
	l.Loop.Stop()
}

type recordingBridge struct {
	calls *callLog
	*session.Bridge
}

func (b *recordingBridge) Establish(ctx context.Context) error {
	b.calls.add("session.establish")
	return b.Bridge.Establish(ctx)
}

func TestService_Register(t *testing.T) {
	f := setupTestFixture(t)
	subject := f.register(t)

	reqs := f.backend.Requests()
	require.NotEmpty(t, reqs)
	require.Equal(t, http.MethodPost, reqs[0].Method)
	require.Equal(t, "/session", reqs[0].Path)
	for _, r := range reqs[1:] {
		require.True(t, strings.HasPrefix(r.Path, "/mobile/"), r.Path)
		require.True(t, r.HadCookie)
		require.True(t, r.HadBearer)
	}

	profile, ok := f.backend.Contractor(subject.ID())
	require.True(t, ok)
	require.Equal(t, testDisplayName, profile.Name)
	require.Equal(t, testEmail, profile.Email)

	require.True(t, f.bridge.Established())
	require.True(t, f.loop.Running())
	require.Equal(t, []string{"mobile"}, f.backend.SessionApps())
}

func TestService_RegisterWithSessionOnlyBackend(t *testing.T) {
	f := setupTestFixture(t, backendfake.WithSessionRequired())
	f.register(t)

	projects, err := f.contractors.ListProjects(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, projects)
}

func TestService_RegisterFailures(t *testing.T) {
	t.Run("invalid input never reaches the provider", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Register(context.Background(), auth.RegisterParams{Email: "nope", Password: testPassword})
		require.ErrorIs(t, err, auth.ErrInvalidInput)
		require.False(t, f.idp.HasAccount("nope"))
	})

	t.Run("email in use", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.idp.AddAccount(testEmail, testPassword)
		require.NoError(t, err)

		_, err = f.service.Register(context.Background(), auth.RegisterParams{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, identity.ErrEmailInUse)
		require.Empty(t, f.backend.Requests())
	})

	t.Run("session rejected signs out", func(t *testing.T) {
		f := setupTestFixture(t, backendfake.WithRequiredClaim("role", "contractor"))

		_, err := f.service.Register(context.Background(), auth.RegisterParams{Email: testEmail, Password: testPassword})
		var establishErr *session.EstablishError
		require.ErrorAs(t, err, &establishErr)
		require.Equal(t, http.StatusForbidden, establishErr.Status)

		require.Nil(t, f.idp.CurrentSubject())
		require.Empty(t, mobileRequests(f.backend.Requests()))
		require.False(t, f.loop.Running())
	})

	t.Run("profile creation failure signs out", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.ForceResponse(http.MethodPost, "/mobile/contractor", http.StatusInternalServerError, `{"error":"db down"}`)

		_, err := f.service.Register(context.Background(), auth.RegisterParams{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, auth.ErrProfileNotCreated)
		require.Contains(t, err.Error(), "db down")
		require.Nil(t, f.idp.CurrentSubject())
		require.False(t, f.bridge.Established())
		require.False(t, f.loop.Running())
	})

	t.Run("profile conflict keeps the backend error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.ForceResponse(http.MethodPost, "/mobile/contractor", http.StatusConflict, `{"error":"Contractor already exists"}`)

		_, err := f.service.Register(context.Background(), auth.RegisterParams{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, auth.ErrProfileNotCreated)
		var profileErr *auth.ProfileError
		require.ErrorAs(t, err, &profileErr)
		var backendErr *apiclient.BackendError
		require.ErrorAs(t, err, &backendErr)
		require.Equal(t, http.StatusConflict, backendErr.Status)
	})

	t.Run("profile blocked by pending deletion", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.ForceResponse(http.MethodPost, "/mobile/contractor", http.StatusForbidden, backendfake.PendingDeletionBody)

		_, err := f.service.Register(context.Background(), auth.RegisterParams{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, auth.ErrProfileNotCreated)
		var pending *lifecycle.AccountPendingDeletionError
		require.ErrorAs(t, err, &pending)
		require.Equal(t, http.StatusForbidden, pending.Status)
		require.Nil(t, f.idp.CurrentSubject())
	})
}

func TestService_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		userID, err := f.idp.AddAccount(testEmail, testPassword)
		require.NoError(t, err)

		subject, err := f.service.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, userID, subject.ID())
		require.True(t, f.bridge.Established())
		require.True(t, f.loop.Running())
		require.Equal(t, 1, f.backend.ActiveSessions())
	})

	t.Run("stops the previous loop before establishing", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.idp.AddAccount(testEmail, testPassword)
		require.NoError(t, err)

		calls := &callLog{}
		service := auth.NewService(auth.Deps{
			Identity:    f.idp,
			Credentials: credential.NewProvider(f.idp),
			Session:     &recordingBridge{calls: calls, Bridge: f.bridge},
			Contractors: f.contractors,
			Refresh:     &recordingLoop{calls: calls, Loop: f.loop},
		})

		_, err = service.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		calls.reset()

		_, err = service.Login(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, []string{"refresh.stop", "session.establish", "refresh.start"}, calls.all())
		require.True(t, f.loop.Running())
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.idp.AddAccount(testEmail, testPassword)
		require.NoError(t, err)

		_, err = f.service.Login(context.Background(), testEmail, "not-the-password")
		require.ErrorIs(t, err, identity.ErrInvalidCredentials)
		require.Empty(t, f.backend.Requests())
		require.False(t, f.loop.Running())
	})
}

func TestService_Logout(t *testing.T) {
	t.Run("tears down the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t)

		require.NoError(t, f.service.Logout(context.Background()))
		require.Nil(t, f.service.CurrentSubject())
		require.False(t, f.loop.Running())
		require.Zero(t, f.backend.ActiveSessions())
	})

	t.Run("teardown network failure still signs out", func(t *testing.T) {
		f := setupTestFixture(t)
		f.register(t)
		f.server.Close()

		require.NoError(t, f.service.Logout(context.Background()))
		require.Nil(t, f.service.CurrentSubject())
		require.False(t, f.loop.Running())
		require.False(t, f.bridge.Established())
	})

	t.Run("when signed out", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Logout(context.Background()))
	})
}

func TestService_Restore(t *testing.T) {
	t.Run("persisted subject arrives", func(t *testing.T) {
		f := setupTestFixture(t)
		userID, err := f.idp.AddAccount(testEmail, testPassword)
		require.NoError(t, err)
		f.idp.RestoreAfter(testEmail, 100*time.Millisecond)

		subject, err := f.service.Restore(context.Background())
		require.NoError(t, err)
		require.Equal(t, userID, subject.ID())
		require.True(t, f.bridge.Established())
		require.True(t, f.loop.Running())
	})

	t.Run("nothing persisted", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Restore(context.Background())
		require.ErrorIs(t, err, credential.ErrAuthTimeout)
		require.Empty(t, f.backend.Requests())
		require.False(t, f.loop.Running())
	})
}

func TestService_DeleteAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		subject := f.register(t)

		require.NoError(t, f.service.DeleteAccount(context.Background()))

		_, ok := f.backend.Contractor(subject.ID())
		require.False(t, ok)
		require.False(t, f.idp.HasAccount(testEmail))
		require.Nil(t, f.service.CurrentSubject())
		require.False(t, f.loop.Running())
		require.Zero(t, f.backend.ActiveSessions())
	})

	t.Run("backend failure keeps the user signed in", func(t *testing.T) {
		f := setupTestFixture(t)
		subject := f.register(t)
		f.backend.ForceResponse(http.MethodDelete, "/mobile/contractor/delete", http.StatusInternalServerError, `{"error":"try again"}`)

		err := f.service.DeleteAccount(context.Background())
		var backendErr *apiclient.BackendError
		require.ErrorAs(t, err, &backendErr)

		require.Equal(t, subject.ID(), f.service.CurrentSubject().ID())
		require.True(t, f.idp.HasAccount(testEmail))
		require.True(t, f.loop.Running())
		require.True(t, f.bridge.Established())
	})

	t.Run("not signed in", func(t *testing.T) {
		f := setupTestFixture(t)
		require.ErrorIs(t, f.service.DeleteAccount(context.Background()), internalerrors.ErrNotSignedIn)
	})
}
