// Package auth orchestrates registration, login, logout, cold-start restore
// and account deletion. It enforces the ordering between the identity
// provider, the backend session and the background refresh loop.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-contractor-session/contractor"
	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity"
	internalerrors "github.com/jrsteele09/go-contractor-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultRestoreTimeout = 5 * time.Second

// CredentialWaiter is the part of *credential.Provider used on cold start.
type CredentialWaiter interface {
	ActiveSubject() identity.Subject
	WaitForCredential(ctx context.Context, timeout time.Duration) (credential.Credential, error)
}

// SessionBridge is implemented by *session.Bridge.
type SessionBridge interface {
	Establish(ctx context.Context) error
	Teardown(ctx context.Context)
}

// ContractorProfiles is implemented by *contractor.Service.
type ContractorProfiles interface {
	Create(ctx context.Context, name, email string) (*contractor.Contractor, error)
	Delete(ctx context.Context) error
}

// RefreshLoop is implemented by *tokenrefresh.Loop.
type RefreshLoop interface {
	Start(ctx context.Context)
	Stop()
}

// Deps holds the collaborators of the Service.
type Deps struct {
	Identity    identity.Provider
	Credentials CredentialWaiter
	Session     SessionBridge
	Contractors ContractorProfiles
	Refresh     RefreshLoop
}

type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
}

type Service struct {
	deps           Deps
	validator      *Validator
	restoreTimeout time.Duration
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithRestoreTimeout sets how long Restore waits for the persisted subject.
func WithRestoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.restoreTimeout = d
	}
}

func NewService(deps Deps, options ...ServiceOption) *Service {
	s := &Service{
		deps:           deps,
		validator:      NewValidator(),
		restoreTimeout: defaultRestoreTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CurrentSubject returns the signed in subject or nil.
func (s *Service) CurrentSubject() identity.Subject {
	return s.deps.Identity.CurrentSubject()
}

// Register signs up with the identity provider, establishes the backend
// session, creates the contractor profile and starts the refresh loop. Any
// failure after sign-up leaves the user signed out.
func (s *Service) Register(ctx context.Context, params RegisterParams) (identity.Subject, error) {
	if err := s.validator.ValidateRegistration(params); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(params.Email)

	subject, err := s.deps.Identity.SignUp(ctx, email, params.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] SignUp")
	}

	if err := s.establish(ctx, subject); err != nil {
		return nil, err
	}

	if _, err := s.deps.Contractors.Create(ctx, strings.TrimSpace(params.DisplayName), email); err != nil {
		log.Err(err).Str("subject", subject.ID()).Msg("Contractor profile creation failed, signing out")
		s.deps.Session.Teardown(ctx)
		s.signOut(ctx, subject)
		return nil, errors.Wrap(&ProfileError{Err: err}, "[Service.Register]")
	}

	s.startRefresh(ctx)
	log.Info().Str("subject", subject.ID()).Msg("Contractor registered")
	return subject, nil
}

// Login signs in, establishes the backend session and starts the refresh
// loop.
func (s *Service) Login(ctx context.Context, email, password string) (identity.Subject, error) {
	if err := s.validator.ValidateUserCredentials(email, password); err != nil {
		return nil, err
	}

	subject, err := s.deps.Identity.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] SignIn")
	}

	if err := s.establish(ctx, subject); err != nil {
		return nil, err
	}

	s.startRefresh(ctx)
	log.Info().Str("subject", subject.ID()).Msg("Contractor logged in")
	return subject, nil
}

// Restore picks up a subject persisted by the identity provider after
// process start and re-establishes the session, which never survives a
// restart.
func (s *Service) Restore(ctx context.Context) (identity.Subject, error) {
	if _, err := s.deps.Credentials.WaitForCredential(ctx, s.restoreTimeout); err != nil {
		return nil, errors.Wrap(err, "[Service.Restore] WaitForCredential")
	}

	subject := s.deps.Credentials.ActiveSubject()
	if subject == nil {
		return nil, internalerrors.ErrNotSignedIn
	}

	if err := s.establish(ctx, subject); err != nil {
		return nil, err
	}

	s.startRefresh(ctx)
	log.Info().Str("subject", subject.ID()).Msg("Session restored")
	return subject, nil
}

// Logout stops the refresh loop, tears the session down and signs out.
// Teardown failures never block the sign-out.
func (s *Service) Logout(ctx context.Context) error {
	s.deps.Refresh.Stop()
	s.deps.Session.Teardown(ctx)

	if err := s.deps.Identity.SignOut(ctx); err != nil {
		return errors.Wrap(err, "[Service.Logout] SignOut")
	}
	log.Info().Msg("Contractor logged out")
	return nil
}

// DeleteAccount removes the contractor profile and then the identity
// account. If either step fails the user stays signed in and the refresh
// loop is resumed.
func (s *Service) DeleteAccount(ctx context.Context) error {
	subject := s.deps.Identity.CurrentSubject()
	if subject == nil {
		return internalerrors.ErrNotSignedIn
	}

	s.deps.Refresh.Stop()

	if err := s.deps.Contractors.Delete(ctx); err != nil {
		s.startRefresh(ctx)
		return errors.Wrap(err, "[Service.DeleteAccount] contractor delete")
	}

	if err := subject.Delete(ctx); err != nil {
		s.startRefresh(ctx)
		return errors.Wrap(err, "[Service.DeleteAccount] subject delete")
	}

	s.deps.Session.Teardown(ctx)
	s.signOut(ctx, subject)
	log.Info().Str("subject", subject.ID()).Msg("Contractor account deleted")
	return nil
}

// establish exchanges the credential for a session and signs the subject
// out on failure so no bearer-only half session is left behind. A loop left
// over from an earlier session is stopped first.
func (s *Service) establish(ctx context.Context, subject identity.Subject) error {
	s.deps.Refresh.Stop()
	if err := s.deps.Session.Establish(ctx); err != nil {
		s.signOut(ctx, subject)
		return errors.Wrap(err, "[Service.establish]")
	}
	return nil
}

func (s *Service) signOut(ctx context.Context, subject identity.Subject) {
	if err := s.deps.Identity.SignOut(ctx); err != nil {
		log.Err(err).Str("subject", subject.ID()).Msg("Sign out failed")
	}
}

// startRefresh detaches the loop from the caller's context so it outlives
// the login request.
func (s *Service) startRefresh(ctx context.Context) {
	s.deps.Refresh.Start(context.WithoutCancel(ctx))
}
