package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-contractor-session/apiclient"
	"github.com/jrsteele09/go-contractor-session/auth"
	"github.com/jrsteele09/go-contractor-session/contractor"
	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/jrsteele09/go-contractor-session/internal/config"
	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/jrsteele09/go-contractor-session/lifecycle"
	"github.com/jrsteele09/go-contractor-session/session"
	"github.com/jrsteele09/go-contractor-session/tokenrefresh"
	"github.com/prometheus/client_golang/prometheus"
)

// app wires one identity provider to the backend at baseURL.
type app struct {
	credentials *credential.Provider
	contractors *contractor.Service
	loop        *tokenrefresh.Loop
	auth        *auth.Service
}

func newApp(c config.Config, idp identity.Provider, baseURL string, reg prometheus.Registerer) *app {
	m := metrics.New(reg)
	credentials := credential.NewProvider(idp, credential.WithWaitTimeout(c.GetCredentialWaitTimeout()))

	// One HTTP client so the session cookie set by the bridge rides on
	// every API call.
	httpClient := apiclient.NewHTTPClient(c.GetRequestTimeout())
	api := apiclient.New(baseURL, credentials,
		apiclient.WithHTTPClient(httpClient),
		apiclient.WithMetrics(m),
		apiclient.WithUserAgent(c.GetAppName()+"/contractorctl"),
		apiclient.WithInterceptor(lifecycle.NewInterceptor(redirectToRestore, lifecycle.WithMetrics(m))),
	)

	a := &app{
		credentials: credentials,
		contractors: contractor.NewService(api),
		loop: tokenrefresh.New(credentials,
			tokenrefresh.WithInterval(c.GetRefreshInterval()),
			tokenrefresh.WithMetrics(m)),
	}
	a.auth = auth.NewService(auth.Deps{
		Identity:    idp,
		Credentials: credentials,
		Session: session.NewBridge(baseURL, httpClient, credentials,
			session.WithClientApp(c.GetClientApp()),
			session.WithMetrics(m)),
		Contractors: a.contractors,
		Refresh:     a.loop,
	}, auth.WithRestoreTimeout(c.GetCredentialWaitTimeout()))
	return a
}

func redirectToRestore(_ context.Context, failure *lifecycle.AccountPendingDeletionError) {
	fmt.Printf("Your account is scheduled for deletion (%s).\n", failure.Message)
	fmt.Println("Run `contractorctl cancel-deletion` to keep it.")
}
