package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

var (
	namePattern    = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+`)
	dobPattern     = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	aadhaarPattern = regexp.MustCompile(`\d{4}\s\d{4}\s\d{4}`)
)

type typeRule struct {
	docType domain.DocumentType
	matches func(lower string) bool
}

// Rules are evaluated in order; the first match wins.
var typeRules = []typeRule{
	{
		docType: domain.TypeAadhaar,
		matches: func(lower string) bool {
			return strings.Contains(lower, "government of india") && aadhaarPattern.MatchString(lower)
		},
	},
	{
		docType: domain.TypePAN,
		matches: func(lower string) bool {
			return strings.Contains(lower, "income tax") || strings.Contains(lower, "permanent account")
		},
	},
	{
		docType: domain.TypeBill,
		matches: func(lower string) bool {
			return strings.Contains(lower, "electricity") || strings.Contains(lower, "bill")
		},
	},
}

func DetectDocumentType(text string) domain.DocumentType {
	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		if rule.matches(lower) {
			return rule.docType
		}
	}
	return domain.TypeOther
}

// ExtractName returns the first line that starts with two capitalized words.
func ExtractName(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if namePattern.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

func ExtractDOB(text string) (string, bool) {
	dob := dobPattern.FindString(text)
	return dob, dob != ""
}

func ExtractAadhaar(text string) (string, bool) {
	number := aadhaarPattern.FindString(text)
	return number, number != ""
}

// AadhaarLast4 returns the trailing group of an Aadhaar number found in text.
func AadhaarLast4(text string) string {
	number, ok := ExtractAadhaar(text)
	if !ok {
		return ""
	}
	return number[len(number)-4:]
}

// Classify runs all extractors over already normalized text.
func Classify(normalized string) domain.ClassifiedDocument {
	doc := domain.ClassifiedDocument{Type: DetectDocumentType(normalized)}
	if name, ok := ExtractName(normalized); ok {
		doc.PersonName = name
	}
	if dob, ok := ExtractDOB(normalized); ok {
		doc.DateOfBirth = dob
	}
	return doc
}

// Classifier is the ports.DocumentClassifier backed by the keyword rules.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(ctx context.Context, rawText string) (domain.ClassifiedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClassifiedDocument{}, err
	}
	return Classify(Normalize(rawText)), nil
}
