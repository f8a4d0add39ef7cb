package filing

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

const (
	unknownPerson = "Unknown"
	unknownYear   = "NA"
	pdfMimeType   = "application/pdf"
)

var (
	nonLetters     = regexp.MustCompile(`[^A-Za-z]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	personFileName = regexp.MustCompile(`^([A-Za-z]+)_([A-Za-z]+)_[^_]+_\d+(?:_\d+)?\.[A-Za-z0-9]+$`)
	typeFileName   = regexp.MustCompile(`_([A-Za-z]+)_[^_]+(?:_\d+)?\.[A-Za-z0-9]+$`)
)

// Policy maps a classified document to its place in the documents tree.
// The zero value files by person.
type Policy struct {
	Mode domain.FilingMode
}

func NewPolicy(mode domain.FilingMode) Policy {
	return Policy{Mode: mode}
}

// ComputeTarget is deterministic in its inputs. PDFs keep a .pdf extension,
// everything else is named .jpg.
func (p Policy) ComputeTarget(doc domain.ClassifiedDocument, captureMillis int64, mimeType string) domain.FilingTarget {
	docType := doc.Type
	if docType == "" {
		docType = domain.TypeOther
	}
	year := YearSegment(doc.DateOfBirth)

	if p.Mode == domain.FilingByType {
		person := typePersonSegment(doc.PersonName)
		return domain.FilingTarget{
			Dir:      string(docType),
			FileName: fmt.Sprintf("%s_%s_%s.%s", person, docType, year, extensionFor(mimeType)),
		}
	}

	person := PersonSegment(doc.PersonName)
	return domain.FilingTarget{
		Dir:      person,
		FileName: fmt.Sprintf("%s_%s_%s_%s.%s", docType, person, year, strconv.FormatInt(captureMillis, 10), extensionFor(mimeType)),
	}
}

// PersonSegment keeps the letters of the first name token.
func PersonSegment(personName string) string {
	fields := strings.Fields(personName)
	if len(fields) == 0 {
		return unknownPerson
	}
	segment := nonLetters.ReplaceAllString(fields[0], "")
	if segment == "" {
		return unknownPerson
	}
	return segment
}

// YearSegment returns the third slash-separated field of a DD/MM/YYYY date.
func YearSegment(dateOfBirth string) string {
	if dateOfBirth == "" {
		return unknownYear
	}
	parts := strings.Split(dateOfBirth, "/")
	if len(parts) < 3 || parts[2] == "" {
		return unknownYear
	}
	return parts[2]
}

func typePersonSegment(personName string) string {
	if personName == "" {
		return unknownPerson
	}
	return whitespaceRuns.ReplaceAllString(personName, "_")
}

func extensionFor(mimeType string) string {
	if strings.EqualFold(strings.TrimSpace(mimeType), pdfMimeType) {
		return "pdf"
	}
	return "jpg"
}

// TypeOf recovers the document type of an already filed file from its
// name, falling back to its folder. A person-mode name only counts when its
// person segment matches the folder it sits in. Renamed files that no
// longer follow either naming convention are reported as Other.
func TypeOf(key string) domain.DocumentType {
	dir, name := path.Split(key)
	folder := path.Base(strings.Trim(dir, "/"))

	if m := personFileName.FindStringSubmatch(name); m != nil && m[2] == folder {
		if t, ok := domain.ParseDocumentType(m[1]); ok {
			return t
		}
	}
	if m := typeFileName.FindStringSubmatch(name); m != nil {
		if t, ok := domain.ParseDocumentType(m[1]); ok {
			return t
		}
	}

	if t, ok := domain.ParseDocumentType(folder); ok {
		return t
	}
	return domain.TypeOther
}
