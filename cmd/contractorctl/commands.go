package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-contractor-session/auth"
	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity/oidcidp"
	"github.com/jrsteele09/go-contractor-session/internal/config"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// newRemoteApp builds the app against the configured issuer and backend.
// With restorePersisted set it also starts restoring the subject saved by
// an earlier run in the background.
func newRemoteApp(ctx context.Context, c config.Config, restorePersisted bool) (*app, error) {
	if err := config.ValidateIdentity(c); err != nil {
		return nil, err
	}

	idp, err := oidcidp.New(ctx, oidcidp.Config{
		IssuerURL:       c.GetIssuerURL(),
		ClientID:        c.GetClientID(),
		ClientSecret:    c.GetClientSecret(),
		RegistrationURL: c.GetRegistrationURL(),
		AccountURL:      c.GetAccountURL(),
		Scopes:          c.GetScopes(),
	},
		oidcidp.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
		oidcidp.WithTokenStore(oidcidp.NewFileStore(c.GetDataFolder())),
	)
	if err != nil {
		return nil, err
	}

	if restorePersisted {
		go func() {
			if _, err := idp.Restore(ctx); err != nil {
				log.Warn().Err(err).Msg("Persisted subject could not be restored")
			}
		}()
	}

	return newApp(c, idp, c.GetAPIBaseURL(), prometheus.DefaultRegisterer), nil
}

func (a *app) login(ctx context.Context, email, password string) error {
	subject, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", subject.Email(), subject.ID())
	return nil
}

func (a *app) register(ctx context.Context, email, password, name string) error {
	subject, err := a.auth.Register(ctx, auth.RegisterParams{Email: email, Password: password, DisplayName: name})
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (%s)\n", subject.Email(), subject.ID())
	return nil
}

// restore re-establishes the session for a subject signed in by an
// earlier run.
func (a *app) restore(ctx context.Context) error {
	if _, err := a.auth.Restore(ctx); err != nil {
		if errors.Is(err, credential.ErrAuthTimeout) {
			return errors.New("not signed in, run `contractorctl login` first")
		}
		return err
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		log.Debug().Err(err).Msg("No session to restore before logout")
	}
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	profile, err := a.contractors.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", profile.Name, profile.Email)
	if profile.Phone != "" {
		fmt.Printf("phone: %s\n", profile.Phone)
	}
	return nil
}

func (a *app) projects(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	projects, err := a.contractors.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		stats, err := a.contractors.ProjectStats(ctx, p.ID)
		if err != nil {
			log.Warn().Err(err).Str("project", p.ID).Msg("Project stats unavailable")
			fmt.Printf("%-10s %-30s %-10s\n", p.ID, p.Name, p.Status)
			continue
		}
		fmt.Printf("%-10s %-30s %-10s photos=%d receipts=%d\n", p.ID, p.Name, p.Status, stats.Photos, stats.Receipts)
	}
	return nil
}

func (a *app) cancelDeletion(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	if err := a.contractors.CancelDeletion(ctx); err != nil {
		return err
	}
	fmt.Println("Account deletion cancelled")
	return nil
}

// watch keeps the session and credential fresh until interrupted.
func (a *app) watch(ctx context.Context, metricsAddr string) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	if metricsAddr != "" {
		serveMetrics(ctx, metricsAddr)
	}
	log.Info().Msg("Watching session, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
