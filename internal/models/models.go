// internal/models/models.go
package models

import (
	"time"

	"casebook/internal/fields"

	"gorm.io/datatypes"
)

type DocumentType string

const (
	DocumentTypeOperativeNote    DocumentType = "OPERATIVE_NOTE"
	DocumentTypeDischargeSummary DocumentType = "DISCHARGE_SUMMARY"
	DocumentTypeHPReport         DocumentType = "HP_REPORT"
	DocumentTypeOther            DocumentType = "OTHER"
)

// ParseDocumentType maps a client-supplied type to a known value. Empty input
// falls back to OTHER.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(s) {
	case "":
		return DocumentTypeOther, true
	case DocumentTypeOperativeNote, DocumentTypeDischargeSummary, DocumentTypeHPReport, DocumentTypeOther:
		return DocumentType(s), true
	}
	return "", false
}

type OcrStatus string

const (
	OcrStatusPending   OcrStatus = "PENDING"
	OcrStatusCompleted OcrStatus = "COMPLETED"
	OcrStatusFailed    OcrStatus = "FAILED"
)

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Cases []Case `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

type Case struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"userId"`
	SurgeryDate       *datatypes.Date `json:"surgeryDate"`
	PatientAge        *int            `json:"patientAge"`
	PatientSex        *string         `json:"patientSex"`
	Diagnosis         *string         `json:"diagnosis"`
	Procedure         *string         `json:"procedure"`
	Surgeon           *string         `json:"surgeon"`
	EmergencyFlag     bool            `gorm:"not null;default:false" json:"emergencyFlag"`
	ComplicationFlags *datatypes.JSON `json:"complicationFlags"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`

	Documents []Document `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

type Document struct {
	ID           uint         `gorm:"primarykey" json:"id"`
	CaseID       uint         `gorm:"not null;index" json:"caseId"`
	Type         DocumentType `gorm:"not null;default:'OTHER'" json:"type"`
	StoragePath  string       `gorm:"not null" json:"storagePath"`
	OriginalName string       `json:"originalName"`
	ContentType  string       `json:"contentType"`
	OcrStatus    OcrStatus    `gorm:"not null;default:'PENDING';index" json:"ocrStatus"`
	OcrStartedAt *time.Time   `json:"ocrStartedAt"`

	RawText      *string         `json:"rawText"`
	SchemaType   *string         `json:"schemaType"`
	ParsedFields *datatypes.JSON `json:"parsedFields"`
	OcrMeta      *datatypes.JSON `json:"ocrMeta"`

	VerifiedFields datatypes.JSONType[fields.Set] `gorm:"not null" json:"verifiedFields"`
	IsVerified     bool                           `gorm:"not null;default:false" json:"isVerified"`
	Revision       uint                           `gorm:"not null;default:0" json:"revision"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Case *Case `gorm:"foreignKey:CaseID" json:"-"`
}
