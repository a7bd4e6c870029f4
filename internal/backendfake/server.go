// Package backendfake is an in-process stand-in for the contractor backend.
// It issues session cookies in exchange for ID tokens, gates /mobile routes
// on a bearer token or the cookie, and records every request in order.
package backendfake

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-contractor-session/contractor"
	"github.com/rs/zerolog/log"
)

const (
	SessionCookieName   = "session"
	PendingDeletionBody = `{"error":"ACCOUNT_PENDING_DELETION"}`
)

// VerifyFunc validates an ID token and returns its claims.
// (*idpfake.FakeProvider).Verify satisfies it.
type VerifyFunc func(rawToken string) (jwtlib.MapClaims, error)

// Request is one recorded call.
type Request struct {
	Method    string
	Path      string
	HadBearer bool
	HadCookie bool
}

type forcedResponse struct {
	status int
	body   string
}

type contractorRecord struct {
	profile   contractor.Contractor
	documents map[contractor.DocumentField]contractor.DocumentMetadata
}

type Server struct {
	router         chi.Router
	verify         VerifyFunc
	requiredClaim  string
	requiredValue  string
	requireSession bool

	lock         sync.RWMutex
	sessions     map[string]string // cookie value -> subject
	sessionApps  []string
	contractors  map[string]*contractorRecord // subject -> record
	projects     []contractor.Project
	projectStats map[string]contractor.ProjectStats
	photos       map[string][]contractor.Photo   // project -> photos
	receipts     map[string][]contractor.Receipt // project -> receipts
	requests     []Request
	forced       map[string][]forcedResponse // "METHOD path" -> one-shot responses
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithRequiredClaim rejects session exchanges whose token lacks claim=value
// with 403, the way the real backend rejects non-contractor roles.
func WithRequiredClaim(claim, value string) Option {
	return func(s *Server) {
		s.requiredClaim = claim
		s.requiredValue = value
	}
}

// WithSessionRequired makes /mobile routes accept only the session cookie.
func WithSessionRequired() Option {
	return func(s *Server) {
		s.requireSession = true
	}
}

func WithProjects(projects []contractor.Project, stats map[string]contractor.ProjectStats) Option {
	return func(s *Server) {
		s.projects = projects
		s.projectStats = stats
	}
}

func New(verify VerifyFunc, options ...Option) *Server {
	s := &Server{
		verify:       verify,
		sessions:     make(map[string]string),
		contractors:  make(map[string]*contractorRecord),
		projects:     defaultProjects(),
		projectStats: defaultProjectStats(),
		forced:       make(map[string][]forcedResponse),
	}
	for _, opt := range options {
		opt(s)
	}
	s.seedMedia()
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.forcedResponses)

	r.Post("/session", s.handleCreateSession)
	r.Delete("/session", s.handleDeleteSession)

	r.Route("/mobile", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.blockPendingDeletion)

		r.Post("/contractor", s.handleCreateContractor)
		r.Get("/contractor", s.handleGetContractor)
		r.Put("/contractor/update", s.handleUpdateContractor)
		r.Delete("/contractor/delete", s.handleDeleteContractor)
		r.Post("/contractor/request-deletion", s.handleRequestDeletion)
		r.Post("/contractor/cancel-deletion", s.handleCancelDeletion)
		r.Put("/contractor/documents", s.handleSaveDocument)
		r.Delete("/contractor/documents", s.handleDeleteDocument)

		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Get("/projects/{id}/stats", s.handleProjectStats)
		r.Get("/projects/{id}/photos", s.handleProjectPhotos)
		r.Get("/projects/{id}/receipts", s.handleProjectReceipts)
		r.Get("/dashboard/stats", s.handleDashboardStats)
		r.Put("/project-assignments/{id}", s.handleUpdateAssignment)

		r.Get("/photos/all", s.handleAllPhotos)
		r.Get("/receipts", s.handleAllReceipts)
		r.Get("/receipts/{id}", s.handleGetReceipt)
		r.Patch("/receipts/{id}", s.handleUpdateReceipt)
	})
	return r
}

// ForceResponse queues a one-shot response for the next matching request.
func (s *Server) ForceResponse(method, path string, status int, body string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	key := method + " " + path
	s.forced[key] = append(s.forced[key], forcedResponse{status: status, body: body})
}

// Requests returns every request seen so far, in arrival order.
func (s *Server) Requests() []Request {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]Request(nil), s.requests...)
}

// ActiveSessions returns the number of live session cookies.
func (s *Server) ActiveSessions() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.sessions)
}

// SessionApps returns the "app" value of every session exchange.
func (s *Server) SessionApps() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]string(nil), s.sessionApps...)
}

// Contractor returns the stored profile for subject.
func (s *Server) Contractor(subject string) (contractor.Contractor, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	rec, ok := s.contractors[subject]
	if !ok {
		return contractor.Contractor{}, false
	}
	return rec.profile, true
}

// Document returns the stored metadata for one of subject's documents.
func (s *Server) Document(subject string, field contractor.DocumentField) (contractor.DocumentMetadata, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	rec, ok := s.contractors[subject]
	if !ok {
		return contractor.DocumentMetadata{}, false
	}
	doc, ok := rec.documents[field]
	return doc, ok
}

// Project returns the stored project, including its assignment.
func (s *Server) Project(id string) (contractor.Project, bool) {
	return s.findProject(id)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, cookieErr := r.Cookie(SessionCookieName)
		s.lock.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			HadBearer: bearerToken(r) != "",
			HadCookie: cookieErr == nil,
		})
		s.lock.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forcedResponses(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.lock.Lock()
		queue := s.forced[key]
		var resp *forcedResponse
		if len(queue) > 0 {
			resp = &queue[0]
			s.forced[key] = queue[1:]
		}
		s.lock.Unlock()

		if resp == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("backendfake: encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
