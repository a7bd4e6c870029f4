// Package contractor wraps the backend's /mobile endpoints for the signed in
// contractor.
package contractor

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Caller is the authenticated request client. *apiclient.Client satisfies it.
type Caller interface {
	CallJSON(ctx context.Context, method, path string, body, out any) error
}

type Service struct {
	api Caller
}

func NewService(api Caller) *Service {
	return &Service{api: api}
}

type createRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Create registers the contractor profile for a newly signed up subject.
func (s *Service) Create(ctx context.Context, name, email string) (*Contractor, error) {
	var c Contractor
	if err := s.api.CallJSON(ctx, http.MethodPost, "/mobile/contractor", createRequest{Name: name, Email: email}, &c); err != nil {
		return nil, errors.Wrap(err, "[Service.Create]")
	}
	return &c, nil
}

func (s *Service) Get(ctx context.Context) (*Contractor, error) {
	var c Contractor
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/contractor", nil, &c); err != nil {
		return nil, errors.Wrap(err, "[Service.Get]")
	}
	return &c, nil
}

// UpdateProfile sends a partial update; only the given keys change.
func (s *Service) UpdateProfile(ctx context.Context, updates map[string]any) (*Contractor, error) {
	var c Contractor
	if err := s.api.CallJSON(ctx, http.MethodPut, "/mobile/contractor/update", updates, &c); err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateProfile]")
	}
	return &c, nil
}

func (s *Service) Delete(ctx context.Context) error {
	return errors.Wrap(s.api.CallJSON(ctx, http.MethodDelete, "/mobile/contractor/delete", nil, nil), "[Service.Delete]")
}

// RequestDeletion schedules the account for deletion. Until it is cancelled
// most endpoints answer with the pending-deletion failure.
func (s *Service) RequestDeletion(ctx context.Context) error {
	return errors.Wrap(s.api.CallJSON(ctx, http.MethodPost, "/mobile/contractor/request-deletion", nil, nil), "[Service.RequestDeletion]")
}

func (s *Service) CancelDeletion(ctx context.Context) error {
	return errors.Wrap(s.api.CallJSON(ctx, http.MethodPost, "/mobile/contractor/cancel-deletion", nil, nil), "[Service.CancelDeletion]")
}

func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/projects", nil, &projects); err != nil {
		return nil, errors.Wrap(err, "[Service.ListProjects]")
	}
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/projects/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, errors.Wrapf(err, "[Service.GetProject] %s", id)
	}
	return &p, nil
}

func (s *Service) ProjectStats(ctx context.Context, id string) (*ProjectStats, error) {
	var stats ProjectStats
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/projects/"+url.PathEscape(id)+"/stats", nil, &stats); err != nil {
		return nil, errors.Wrapf(err, "[Service.ProjectStats] %s", id)
	}
	return &stats, nil
}

func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/dashboard/stats", nil, &stats); err != nil {
		return nil, errors.Wrap(err, "[Service.DashboardStats]")
	}
	return &stats, nil
}

type assignmentStatusRequest struct {
	Status AssignmentStatus `json:"status"`
}

// UpdateAssignmentStatus moves the contractor's assignment on a project to
// status.
func (s *Service) UpdateAssignmentStatus(ctx context.Context, assignmentID string, status AssignmentStatus) (*Assignment, error) {
	if assignmentID == "" {
		return nil, errors.Wrap(ErrMissingID, "[Service.UpdateAssignmentStatus]")
	}
	if !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidAssignmentStatus, "[Service.UpdateAssignmentStatus] %q", status)
	}
	var a Assignment
	path := "/mobile/project-assignments/" + url.PathEscape(assignmentID)
	if err := s.api.CallJSON(ctx, http.MethodPut, path, assignmentStatusRequest{Status: status}, &a); err != nil {
		return nil, errors.Wrapf(err, "[Service.UpdateAssignmentStatus] %s", assignmentID)
	}
	return &a, nil
}

func (s *Service) ProjectPhotos(ctx context.Context, projectID string) ([]Photo, error) {
	var photos []Photo
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/projects/"+url.PathEscape(projectID)+"/photos", nil, &photos); err != nil {
		return nil, errors.Wrapf(err, "[Service.ProjectPhotos] %s", projectID)
	}
	return photos, nil
}

// AllPhotos returns the contractor's photos grouped by project.
func (s *Service) AllPhotos(ctx context.Context) ([]ProjectPhotos, error) {
	var groups []ProjectPhotos
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/photos/all", nil, &groups); err != nil {
		return nil, errors.Wrap(err, "[Service.AllPhotos]")
	}
	return groups, nil
}

func (s *Service) ProjectReceipts(ctx context.Context, projectID string) ([]Receipt, error) {
	var receipts []Receipt
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/projects/"+url.PathEscape(projectID)+"/receipts", nil, &receipts); err != nil {
		return nil, errors.Wrapf(err, "[Service.ProjectReceipts] %s", projectID)
	}
	return receipts, nil
}

// AllReceipts returns the contractor's receipts grouped by project.
func (s *Service) AllReceipts(ctx context.Context) ([]ProjectReceipts, error) {
	var groups []ProjectReceipts
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/receipts", nil, &groups); err != nil {
		return nil, errors.Wrap(err, "[Service.AllReceipts]")
	}
	return groups, nil
}

func (s *Service) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	if id == "" {
		return nil, errors.Wrap(ErrMissingID, "[Service.GetReceipt]")
	}
	var r Receipt
	if err := s.api.CallJSON(ctx, http.MethodGet, "/mobile/receipts/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, errors.Wrapf(err, "[Service.GetReceipt] %s", id)
	}
	return &r, nil
}

// UpdateReceipt edits a receipt's title, amount or date.
func (s *Service) UpdateReceipt(ctx context.Context, id string, update ReceiptUpdate) (*Receipt, error) {
	if id == "" {
		return nil, errors.Wrap(ErrMissingID, "[Service.UpdateReceipt]")
	}
	var r Receipt
	if err := s.api.CallJSON(ctx, http.MethodPatch, "/mobile/receipts/"+url.PathEscape(id), update, &r); err != nil {
		return nil, errors.Wrapf(err, "[Service.UpdateReceipt] %s", id)
	}
	return &r, nil
}

// SaveDocumentMetadata records an already uploaded document on the profile.
func (s *Service) SaveDocumentMetadata(ctx context.Context, doc DocumentMetadata) error {
	if !doc.Field.Valid() {
		return errors.Wrapf(ErrInvalidDocumentField, "[Service.SaveDocumentMetadata] %q", doc.Field)
	}
	return errors.Wrap(s.api.CallJSON(ctx, http.MethodPut, "/mobile/contractor/documents", doc, nil), "[Service.SaveDocumentMetadata]")
}

type deleteDocumentRequest struct {
	Field DocumentField `json:"field"`
}

func (s *Service) DeleteDocument(ctx context.Context, field DocumentField) error {
	if !field.Valid() {
		return errors.Wrapf(ErrInvalidDocumentField, "[Service.DeleteDocument] %q", field)
	}
	return errors.Wrap(s.api.CallJSON(ctx, http.MethodDelete, "/mobile/contractor/documents", deleteDocumentRequest{Field: field}, nil), "[Service.DeleteDocument]")
}
