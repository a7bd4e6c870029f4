// Package session exchanges identity credentials for the backend's session
// cookie and clears it again on logout.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	sessionPath      = "/session"
	defaultClientApp = "mobile"
	maxErrorBody     = 16 << 10
)

// CredentialSource is the part of *credential.Provider the bridge needs.
type CredentialSource interface {
	ActiveSubject() identity.Subject
	GetValidCredential(ctx context.Context, forceRefresh bool) (credential.Credential, error)
}

type establishRequest struct {
	IDToken string `json:"idToken"`
	App     string `json:"app"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Bridge owns the session cookie lifecycle. It must share its *http.Client
// (and so its cookie jar) with the apiclient.Client.
type Bridge struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	clientApp   string
	metrics     *metrics.Metrics

	mu          sync.Mutex
	established bool
}

// BridgeOption defines a function type to modify the Bridge instance.
type BridgeOption func(*Bridge)

func WithClientApp(app string) BridgeOption {
	return func(b *Bridge) {
		b.clientApp = app
	}
}

func WithMetrics(m *metrics.Metrics) BridgeOption {
	return func(b *Bridge) {
		b.metrics = m
	}
}

func NewBridge(baseURL string, httpClient *http.Client, credentials CredentialSource, options ...BridgeOption) *Bridge {
	b := &Bridge{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		credentials: credentials,
		clientApp:   defaultClientApp,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Establish posts a freshly minted credential to the session endpoint so
// the backend sets its cookie. The cached credential is never used: a new
// subject's cached token may not carry the claims the backend checks.
func (b *Bridge) Establish(ctx context.Context) error {
	subject := b.credentials.ActiveSubject()
	if subject == nil {
		return ErrNoActiveSubject
	}

	cred, err := b.credentials.GetValidCredential(ctx, true)
	if err != nil {
		b.metrics.IncrementSessionEstablish(metrics.OutcomeFailure)
		return err
	}

	if err := b.exchange(ctx, cred); err != nil {
		b.metrics.IncrementSessionEstablish(metrics.OutcomeFailure)
		log.Err(err).Str("subject", subject.ID()).Msg("Session establish failed")
		return err
	}

	b.setEstablished(true)
	b.metrics.IncrementSessionEstablish(metrics.OutcomeSuccess)
	log.Debug().Str("subject", subject.ID()).Msg("Session established")
	return nil
}

func (b *Bridge) exchange(ctx context.Context, cred credential.Credential) error {
	payload, err := json.Marshal(establishRequest{IDToken: cred.Token, App: b.clientApp})
	if err != nil {
		return errors.Wrap(err, "[Bridge.exchange] json.Marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+sessionPath, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "[Bridge.exchange] NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &EstablishError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &EstablishError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
}

// Teardown asks the backend to clear the session cookie. Failures are
// logged and never returned so sign-out can always proceed.
func (b *Bridge) Teardown(ctx context.Context) {
	b.setEstablished(false)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.baseURL+sessionPath, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Session teardown request could not be built")
		return
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Session teardown failed, continuing with sign out")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Msg("Session teardown rejected, continuing with sign out")
	}
}

// Established reports whether a session was set up since the last teardown.
func (b *Bridge) Established() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.established
}

func (b *Bridge) setEstablished(v bool) {
	b.mu.Lock()
	b.established = v
	b.mu.Unlock()
}

func errorMessage(status int, body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Failed to create session"
}
