package domain

import (
	"path"
	"strings"
	"time"
)

type DocumentType string

const (
	TypeAadhaar DocumentType = "Aadhaar"
	TypePAN     DocumentType = "PAN"
	TypeBill    DocumentType = "Bill"
	TypeOther   DocumentType = "Other"
)

var documentTypes = []DocumentType{TypeAadhaar, TypePAN, TypeBill, TypeOther}

// ParseDocumentType matches s against the known types case-insensitively.
func ParseDocumentType(s string) (DocumentType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range documentTypes {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return TypeOther, false
}

// ClassifiedDocument holds the fields guessed from normalized OCR text.
// Empty PersonName or DateOfBirth means the field was not found.
type ClassifiedDocument struct {
	Type        DocumentType `json:"document_type"`
	PersonName  string       `json:"person_name,omitempty"`
	DateOfBirth string       `json:"date_of_birth,omitempty"`
}

// DefaultClassification is used when no text could be recognized.
func DefaultClassification() ClassifiedDocument {
	return ClassifiedDocument{Type: TypeOther}
}

type FilingMode string

const (
	FilingByPerson FilingMode = "person"
	FilingByType   FilingMode = "type"
)

func ParseFilingMode(s string) (FilingMode, bool) {
	switch FilingMode(strings.ToLower(strings.TrimSpace(s))) {
	case FilingByPerson:
		return FilingByPerson, true
	case FilingByType:
		return FilingByType, true
	default:
		return FilingByPerson, false
	}
}

// FilingTarget is where a classified document lands under the documents root.
type FilingTarget struct {
	Dir      string `json:"dir"`
	FileName string `json:"file_name"`
}

// Key is the slash-separated storage key of the target.
func (t FilingTarget) Key() string {
	return path.Join(t.Dir, t.FileName)
}

type FiledDocument struct {
	ID          string             `json:"id"`
	CaptureID   string             `json:"capture_id"`
	Classified  ClassifiedDocument `json:"classified"`
	Folder      string             `json:"folder"`
	FileName    string             `json:"file_name"`
	Path        string             `json:"path"`
	MimeType    string             `json:"mime_type"`
	AadhaarLast string             `json:"aadhaar_last4,omitempty"`
	Text        string             `json:"-"`
	CapturedAt  time.Time          `json:"captured_at"`
	FiledAt     time.Time          `json:"filed_at"`
}

// ClassificationPreview is the dry-run result of the text pipeline.
type ClassificationPreview struct {
	NormalizedText string             `json:"normalized_text"`
	Classified     ClassifiedDocument `json:"classified"`
	Target         FilingTarget       `json:"target"`
}
