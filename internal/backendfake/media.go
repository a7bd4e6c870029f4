package backendfake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-contractor-session/contractor"
)

const mediaHost = "https://cdn.fake.local"

// seedMedia creates as many photos and receipts per project as its stats
// report, so the listings agree with the dashboard.
func (s *Server) seedMedia() {
	s.photos = make(map[string][]contractor.Photo)
	s.receipts = make(map[string][]contractor.Receipt)

	for _, p := range s.projects {
		stats := s.projectStats[p.ID]
		for i := 1; i <= stats.Photos; i++ {
			id := fmt.Sprintf("%s-ph-%d", p.ID, i)
			photoType := contractor.PhotoBefore
			if i%2 == 0 {
				photoType = contractor.PhotoAfter
			}
			s.photos[p.ID] = append(s.photos[p.ID], contractor.Photo{
				ID:         id,
				URL:        fmt.Sprintf("%s/photos/%s.jpg", mediaHost, id),
				PublicID:   "photos/" + id,
				Type:       photoType,
				UploadedAt: p.CreatedAt,
			})
		}
		for i := 1; i <= stats.Receipts; i++ {
			id := fmt.Sprintf("%s-rc-%d", p.ID, i)
			s.receipts[p.ID] = append(s.receipts[p.ID], contractor.Receipt{
				ID:         id,
				ProjectID:  p.ID,
				URL:        fmt.Sprintf("%s/receipts/%s.jpg", mediaHost, id),
				Title:      fmt.Sprintf("Receipt %d", i),
				UploadedAt: p.CreatedAt,
			})
		}
	}
}

func (s *Server) handleProjectPhotos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.findProject(id); !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	s.lock.RLock()
	photos := append([]contractor.Photo{}, s.photos[id]...)
	s.lock.RUnlock()
	writeJSON(w, http.StatusOK, photos)
}

func (s *Server) handleAllPhotos(w http.ResponseWriter, _ *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	groups := []contractor.ProjectPhotos{}
	for _, p := range s.projects {
		if len(s.photos[p.ID]) == 0 {
			continue
		}
		groups = append(groups, contractor.ProjectPhotos{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Photos:      append([]contractor.Photo{}, s.photos[p.ID]...),
			CreatedAt:   p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleProjectReceipts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.findProject(id); !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	s.lock.RLock()
	receipts := append([]contractor.Receipt{}, s.receipts[id]...)
	s.lock.RUnlock()
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleAllReceipts(w http.ResponseWriter, _ *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	groups := []contractor.ProjectReceipts{}
	for _, p := range s.projects {
		if len(s.receipts[p.ID]) == 0 {
			continue
		}
		groups = append(groups, contractor.ProjectReceipts{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Receipts:    append([]contractor.Receipt{}, s.receipts[p.ID]...),
		})
	}
	writeJSON(w, http.StatusOK, groups)
}

// receiptLocked returns a pointer into the receipt store. Callers hold lock.
func (s *Server) receiptLocked(id string) *contractor.Receipt {
	for project := range s.receipts {
		for i := range s.receipts[project] {
			if s.receipts[project][i].ID == id {
				return &s.receipts[project][i]
			}
		}
	}
	return nil
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	receipt := s.receiptLocked(chi.URLParam(r, "id"))
	if receipt == nil {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var update contractor.ReceiptUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if update.Title != nil && *update.Title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	receipt := s.receiptLocked(chi.URLParam(r, "id"))
	if receipt == nil {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	if update.Title != nil {
		receipt.Title = *update.Title
	}
	if update.Amount != nil {
		amount := *update.Amount
		receipt.Amount = &amount
	}
	if update.Date != nil {
		receipt.Date = *update.Date
	}
	receipt.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status contractor.AssignmentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	id := chi.URLParam(r, "id")
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.projects {
		a := s.projects[i].Assignment
		if a == nil || a.ID != id {
			continue
		}
		a.Status = req.Status
		if req.Status == contractor.AssignmentCompleted {
			a.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		}
		s.projects[i].Status = string(req.Status)
		writeJSON(w, http.StatusOK, a)
		return
	}
	writeError(w, http.StatusNotFound, "Assignment not found")
}
