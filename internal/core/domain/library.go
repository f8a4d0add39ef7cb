package domain

import (
	"strings"
	"time"
)

// FileEntry is a plain file found in a storage root.
type FileEntry struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Dir     string    `json:"dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

type StoredDocument struct {
	Path       string       `json:"path"`
	Name       string       `json:"name"`
	Folder     string       `json:"folder"`
	Type       DocumentType `json:"document_type"`
	Size       int64        `json:"size"`
	ModifiedAt time.Time    `json:"modified_at"`
}

type LibraryTag string

const (
	TagAll    LibraryTag = "all"
	TagID     LibraryTag = "id"
	TagBills  LibraryTag = "bills"
	TagOthers LibraryTag = "others"
)

func ParseLibraryTag(s string) (LibraryTag, bool) {
	switch LibraryTag(strings.ToLower(strings.TrimSpace(s))) {
	case "", TagAll:
		return TagAll, true
	case TagID:
		return TagID, true
	case TagBills:
		return TagBills, true
	case TagOthers:
		return TagOthers, true
	default:
		return TagAll, false
	}
}

func (t LibraryTag) Matches(dt DocumentType) bool {
	switch t {
	case TagID:
		return dt == TypeAadhaar || dt == TypePAN
	case TagBills:
		return dt == TypeBill
	case TagOthers:
		return dt == TypeOther
	default:
		return true
	}
}

type LibraryFilter struct {
	Query string
	Tag   LibraryTag
}
