package main

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/jrsteele09/go-contractor-session/auth"
	"github.com/jrsteele09/go-contractor-session/contractor"
	"github.com/jrsteele09/go-contractor-session/identity/idpfake"
	"github.com/jrsteele09/go-contractor-session/internal/backendfake"
	"github.com/jrsteele09/go-contractor-session/internal/config"
	"github.com/jrsteele09/go-contractor-session/lifecycle"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// runDemo walks the whole lifecycle against in-process fakes.
func runDemo(ctx context.Context, c config.Config) error {
	idp := idpfake.NewFakeProvider()
	backend := backendfake.New(idp.Verify)
	server := httptest.NewServer(backend)
	defer server.Close()

	a := newApp(c, idp, server.URL, prometheus.NewRegistry())
	defer a.loop.Stop()

	subject, err := a.auth.Register(ctx, auth.RegisterParams{
		Email:       "demo.contractor@example.com",
		Password:    "demo-password",
		DisplayName: "Demo Contractor",
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s, refresh loop running: %t\n", subject.Email(), a.loop.Running())

	projects, err := a.contractors.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		fmt.Printf("  %-6s %-28s %s\n", p.ID, p.Name, p.Status)
	}

	stats, err := a.contractors.DashboardStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Dashboard: %d projects, %d photos, %d receipts\n", stats.TotalProjects, stats.Photos, stats.Receipts)

	for _, p := range projects {
		if p.Assignment == nil || p.Assignment.Status != contractor.AssignmentPending {
			continue
		}
		assignment, err := a.contractors.UpdateAssignmentStatus(ctx, p.Assignment.ID, contractor.AssignmentOngoing)
		if err != nil {
			return err
		}
		fmt.Printf("Started %s, assignment now %s\n", p.Name, assignment.Status)
	}

	groups, err := a.contractors.AllReceipts(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		fmt.Printf("  %-28s %d receipts\n", g.ProjectName, len(g.Receipts))
	}

	if err := a.contractors.RequestDeletion(ctx); err != nil {
		return err
	}
	var pending *lifecycle.AccountPendingDeletionError
	if _, err := a.contractors.ListProjects(ctx); !errors.As(err, &pending) {
		return errors.Errorf("expected a pending deletion failure, got %v", err)
	}
	if err := a.contractors.CancelDeletion(ctx); err != nil {
		return err
	}
	fmt.Println("Deletion cancelled")

	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Printf("Signed out, requests seen by backend: %d\n", len(backend.Requests()))
	return nil
}
