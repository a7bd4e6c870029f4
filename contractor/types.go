package contractor

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidDocumentField    = errors.New("document field not allowed")
	ErrInvalidAssignmentStatus = errors.New("assignment status not allowed")
	ErrMissingID               = errors.New("id is required")
)

// Contractor is the backend's contractor profile.
type Contractor struct {
	ID              string `json:"_id,omitempty"`
	UID             string `json:"uid,omitempty"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Role            string `json:"role,omitempty"`
	PendingDeletion bool   `json:"pendingDeletion,omitempty"`
}

type Project struct {
	ID         string      `json:"_id"`
	Name       string      `json:"name"`
	Location   string      `json:"location,omitempty"`
	Status     string      `json:"status"`
	CreatedAt  string      `json:"createdAt"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

// AssignmentStatus is the contractor's progress on a project.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "Pending"
	AssignmentOngoing   AssignmentStatus = "Ongoing"
	AssignmentCompleted AssignmentStatus = "Completed"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentOngoing, AssignmentCompleted:
		return true
	}
	return false
}

// Assignment links the contractor to a project.
type Assignment struct {
	ID          string           `json:"_id"`
	Status      AssignmentStatus `json:"status"`
	StartDate   string           `json:"startDate,omitempty"`
	EndDate     string           `json:"endDate,omitempty"`
	CompletedAt string           `json:"completedAt,omitempty"`
}

type PhotoType string

const (
	PhotoBefore PhotoType = "before"
	PhotoAfter  PhotoType = "after"
)

type Photo struct {
	ID           string    `json:"_id"`
	URL          string    `json:"url"`
	PublicID     string    `json:"public_id,omitempty"`
	Type         PhotoType `json:"type"`
	ContractorID string    `json:"contractorId,omitempty"`
	UploadedAt   string    `json:"uploadedAt"`
}

// ProjectPhotos groups the photos of one project.
type ProjectPhotos struct {
	ProjectID   string  `json:"projectId"`
	ProjectName string  `json:"projectName"`
	Photos      []Photo `json:"photos"`
	CreatedAt   string  `json:"createdAt,omitempty"`
}

type ReceiptContractor struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Receipt struct {
	ID         string             `json:"_id"`
	ProjectID  string             `json:"projectId"`
	URL        string             `json:"url"`
	Title      string             `json:"title"`
	Amount     *float64           `json:"amount,omitempty"`
	Date       string             `json:"date,omitempty"`
	Contractor *ReceiptContractor `json:"contractorId,omitempty"`
	UploadedAt string             `json:"uploadedAt"`
	UpdatedAt  string             `json:"updatedAt,omitempty"`
}

// ProjectReceipts groups the receipts of one project.
type ProjectReceipts struct {
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	Receipts    []Receipt `json:"receipts"`
}

// ReceiptUpdate is a partial receipt edit; nil fields are left unchanged.
type ReceiptUpdate struct {
	Title  *string  `json:"title,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
	Date   *string  `json:"date,omitempty"`
}

type ProjectStats struct {
	Photos   int `json:"photos"`
	Receipts int `json:"receipts"`
}

type DashboardStats struct {
	TotalProjects     int `json:"totalProjects"`
	OngoingProjects   int `json:"ongoingProjects"`
	CompletedProjects int `json:"completedProjects"`
	Photos            int `json:"photos"`
	Receipts          int `json:"receipts"`
}

// DocumentField names one of the compliance documents on a profile.
type DocumentField string

const (
	DocumentABN                  DocumentField = "abn"
	DocumentContractorLicense    DocumentField = "contractorLicense"
	DocumentValidID              DocumentField = "validId"
	DocumentPublicLiabilityCopy  DocumentField = "publicLiabilityCopy"
	DocumentWorkersInsuranceCopy DocumentField = "workersInsuranceCopy"
)

var allowedDocumentFields = map[DocumentField]bool{
	DocumentABN:                  true,
	DocumentContractorLicense:    true,
	DocumentValidID:              true,
	DocumentPublicLiabilityCopy:  true,
	DocumentWorkersInsuranceCopy: true,
}

func (f DocumentField) Valid() bool {
	return allowedDocumentFields[f]
}

// DocumentMetadata records where an uploaded document lives.
type DocumentMetadata struct {
	Field     DocumentField `json:"field"`
	FileURL   string        `json:"fileUrl,omitempty"`
	ObjectKey string        `json:"objectKey,omitempty"`
	Expiry    string        `json:"expiry,omitempty"`
}
