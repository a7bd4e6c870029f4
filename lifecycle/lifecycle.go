// Package lifecycle recognises backend failures that mean the contractor
// account is scheduled for deletion and turns them into a distinct error.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-contractor-session/apiclient"
	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/rs/zerolog/log"
)

// PendingDeletionCode is the structured code the backend sends for accounts
// scheduled for deletion.
const PendingDeletionCode = "ACCOUNT_PENDING_DELETION"

const pendingDeletionPhrase = "pending deletion"

// AccountPendingDeletionError replaces the generic backend error so callers
// can offer to cancel the deletion.
type AccountPendingDeletionError struct {
	Status  int
	Message string
}

func (e *AccountPendingDeletionError) Error() string {
	return fmt.Sprintf("account pending deletion (status %d): %s", e.Status, e.Message)
}

// IsPendingDeletion reports whether a failure carries the pending-deletion
// marker: the structured code, or a message containing the code or the
// phrase, ignoring case.
func IsPendingDeletion(code, message string) bool {
	if code == PendingDeletionCode {
		return true
	}
	if strings.Contains(message, PendingDeletionCode) {
		return true
	}
	return strings.Contains(strings.ToLower(message), pendingDeletionPhrase)
}

// RedirectFunc sends the user to the account restoration screen.
type RedirectFunc func(ctx context.Context, failure *AccountPendingDeletionError)

var _ apiclient.Interceptor = (*Interceptor)(nil)

type Interceptor struct {
	redirect RedirectFunc
	metrics  *metrics.Metrics
}

// InterceptorOption defines a function type to modify the Interceptor instance.
type InterceptorOption func(*Interceptor)

func WithMetrics(m *metrics.Metrics) InterceptorOption {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

// NewInterceptor returns an interceptor that calls redirect once for every
// matched failure. A nil redirect only replaces the error.
func NewInterceptor(redirect RedirectFunc, options ...InterceptorOption) *Interceptor {
	i := &Interceptor{redirect: redirect}
	for _, opt := range options {
		opt(i)
	}
	return i
}

func (i *Interceptor) Intercept(ctx context.Context, failure *apiclient.BackendError) error {
	if failure == nil || !IsPendingDeletion(failure.Code, failure.Message) {
		return nil
	}

	pending := &AccountPendingDeletionError{Status: failure.Status, Message: failure.Message}
	i.metrics.IncrementPendingDeletion()
	log.Info().Int("status", failure.Status).Msg("Account is pending deletion, redirecting to restore")

	if i.redirect != nil {
		i.redirect(ctx, pending)
	}
	return pending
}
