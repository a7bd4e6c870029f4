package backendfake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-contractor-session/contractor"
)

type subjectKey struct{}

func subjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

type createSessionRequest struct {
	IDToken string `json:"idToken"`
	App     string `json:"app"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "Missing idToken")
		return
	}

	claims, err := s.verify(req.IDToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if s.requiredClaim != "" && fmt.Sprint(claims[s.requiredClaim]) != s.requiredValue {
		writeError(w, http.StatusForbidden, "Role mismatch")
		return
	}
	subject, _ := claims.GetSubject()

	sessionID := uuid.New().String()
	s.lock.Lock()
	s.sessions[sessionID] = subject
	s.sessionApps = append(s.sessionApps, req.App)
	s.lock.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		s.lock.Lock()
		delete(s.sessions, c.Value)
		s.lock.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

// authenticate resolves the subject from the bearer token, falling back to
// the session cookie. A bearer token that fails verification is a 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := ""

		if token := bearerToken(r); token != "" && !s.requireSession {
			claims, err := s.verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			subject, _ = claims.GetSubject()
		}

		if subject == "" {
			if c, err := r.Cookie(SessionCookieName); err == nil {
				s.lock.RLock()
				subject = s.sessions[c.Value]
				s.lock.RUnlock()
			}
		}

		if subject == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
	})
}

func (s *Server) blockPendingDeletion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mobile/contractor/cancel-deletion" {
			next.ServeHTTP(w, r)
			return
		}
		s.lock.RLock()
		rec, ok := s.contractors[subjectFrom(r.Context())]
		pending := ok && rec.profile.PendingDeletion
		s.lock.RUnlock()

		if pending {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(PendingDeletionBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreateContractor(w http.ResponseWriter, r *http.Request) {
	var req contractor.Contractor
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	subject := subjectFrom(r.Context())

	s.lock.Lock()
	defer s.lock.Unlock()
	if _, exists := s.contractors[subject]; exists {
		writeError(w, http.StatusConflict, "Contractor already exists")
		return
	}
	rec := &contractorRecord{
		profile: contractor.Contractor{
			ID:    uuid.New().String(),
			UID:   subject,
			Name:  req.Name,
			Email: req.Email,
			Role:  "contractor",
		},
		documents: make(map[contractor.DocumentField]contractor.DocumentMetadata),
	}
	s.contractors[subject] = rec
	writeJSON(w, http.StatusCreated, rec.profile)
}

func (s *Server) handleGetContractor(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.Contractor(subjectFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "Contractor not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateContractor(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.contractors[subjectFrom(r.Context())]
	if !ok {
		writeError(w, http.StatusNotFound, "Contractor not found")
		return
	}
	if name, ok := updates["name"].(string); ok && name != "" {
		rec.profile.Name = name
	}
	if phone, ok := updates["phone"].(string); ok {
		rec.profile.Phone = phone
	}
	writeJSON(w, http.StatusOK, rec.profile)
}

func (s *Server) handleDeleteContractor(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	delete(s.contractors, subjectFrom(r.Context()))
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) setPendingDeletion(w http.ResponseWriter, r *http.Request, pending bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.contractors[subjectFrom(r.Context())]
	if !ok {
		writeError(w, http.StatusNotFound, "Contractor not found")
		return
	}
	rec.profile.PendingDeletion = pending
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	s.setPendingDeletion(w, r, true)
}

func (s *Server) handleCancelDeletion(w http.ResponseWriter, r *http.Request) {
	s.setPendingDeletion(w, r, false)
}

func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	var doc contractor.DocumentMetadata
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || !doc.Field.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid document field")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.contractors[subjectFrom(r.Context())]
	if !ok {
		writeError(w, http.StatusNotFound, "Contractor not found")
		return
	}
	rec.documents[doc.Field] = doc
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field contractor.DocumentField `json:"field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Field.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid document field")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	rec, ok := s.contractors[subjectFrom(r.Context())]
	if !ok {
		writeError(w, http.StatusNotFound, "Contractor not found")
		return
	}
	delete(rec.documents, req.Field)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	s.lock.RLock()
	projects := make([]contractor.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, cloneProject(p))
	}
	s.lock.RUnlock()
	writeJSON(w, http.StatusOK, projects)
}

func cloneProject(p contractor.Project) contractor.Project {
	if p.Assignment != nil {
		a := *p.Assignment
		p.Assignment = &a
	}
	return p
}

func (s *Server) findProject(id string) (contractor.Project, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return cloneProject(p), true
		}
	}
	return contractor.Project{}, false
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.findProject(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.findProject(id); !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	s.lock.RLock()
	stats := s.projectStats[id]
	s.lock.RUnlock()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, _ *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var stats contractor.DashboardStats
	for _, p := range s.projects {
		stats.TotalProjects++
		switch p.Status {
		case "Ongoing":
			stats.OngoingProjects++
		case "Completed":
			stats.CompletedProjects++
		}
		stats.Photos += s.projectStats[p.ID].Photos
		stats.Receipts += s.projectStats[p.ID].Receipts
	}
	writeJSON(w, http.StatusOK, stats)
}

func defaultProjects() []contractor.Project {
	return []contractor.Project{
		{ID: "p-100", Name: "Harbour St Renovation", Location: "Sydney NSW", Status: "Ongoing", CreatedAt: "2025-02-03T09:00:00Z",
			Assignment: &contractor.Assignment{ID: "a-100", Status: contractor.AssignmentOngoing, StartDate: "2025-02-10"}},
		{ID: "p-101", Name: "Kew Deck Extension", Location: "Melbourne VIC", Status: "Pending", CreatedAt: "2025-03-11T09:00:00Z",
			Assignment: &contractor.Assignment{ID: "a-101", Status: contractor.AssignmentPending}},
		{ID: "p-102", Name: "Bondi Bathroom Refit", Location: "Sydney NSW", Status: "Completed", CreatedAt: "2024-11-20T09:00:00Z",
			Assignment: &contractor.Assignment{ID: "a-102", Status: contractor.AssignmentCompleted, StartDate: "2024-11-25", CompletedAt: "2025-01-17"}},
	}
}

func defaultProjectStats() map[string]contractor.ProjectStats {
	return map[string]contractor.ProjectStats{
		"p-100": {Photos: 12, Receipts: 4},
		"p-101": {Photos: 0, Receipts: 1},
		"p-102": {Photos: 31, Receipts: 9},
	}
}
