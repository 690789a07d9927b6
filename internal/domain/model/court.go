package model

import (
	"errors"
	"strings"
)

// Court names as they arrive from the client and are stored on followed cases.
const (
	CourtNameNCLT     = "National Company Law Tribunal (NCLT)"
	CourtNameCAT      = "Central Administrative Tribunal (CAT)"
	CourtNameConsumer = "Consumer Forum"
)

// CourtKind classifies a court by the identifier scheme its case data
// endpoint accepts.
type CourtKind int

const (
	// CourtHigh covers high courts, the supreme court, and any court not
	// otherwise recognised. Cases are identified by CNR.
	CourtHigh CourtKind = iota
	// CourtDistrict covers district courts. Cases are identified by CNR.
	CourtDistrict
	// CourtNCLT identifies cases by filing number.
	CourtNCLT
	// CourtCAT identifies cases by diary number, year, and bench.
	CourtCAT
	// CourtConsumer identifies cases by case number.
	CourtConsumer
)

// ClassifyCourt maps a court name onto its kind.
func ClassifyCourt(name string) CourtKind {
	switch {
	case strings.Contains(strings.ToLower(name), "district"):
		return CourtDistrict
	case name == CourtNameNCLT:
		return CourtNCLT
	case name == CourtNameCAT:
		return CourtCAT
	case name == CourtNameConsumer:
		return CourtConsumer
	default:
		return CourtHigh
	}
}

// String returns a short name for the court kind.
func (k CourtKind) String() string {
	switch k {
	case CourtHigh:
		return "high"
	case CourtDistrict:
		return "district"
	case CourtNCLT:
		return "nclt"
	case CourtCAT:
		return "cat"
	case CourtConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// IdentifierField names the identifier the court family is keyed by.
func (k CourtKind) IdentifierField() string {
	switch k {
	case CourtNCLT:
		return "filing_number"
	case CourtCAT:
		return "diary_number"
	case CourtConsumer:
		return "case_number"
	default:
		return "cnr"
	}
}

// ErrMissingIdentifier is returned when a case lacks the identifier its court
// kind requires.
var ErrMissingIdentifier = errors.New("case identifier missing")

// CaseIdentifier carries every identifier a followed case may have. Which
// fields are meaningful depends on Kind.
type CaseIdentifier struct {
	Kind         CourtKind
	CNR          string // CNR, or the case number for consumer forum cases.
	FilingNumber string
	DiaryNumber  string
	CaseYear     string
	BenchID      string
}

// Validate reports ErrMissingIdentifier when the identifier required by the
// court kind is empty.
func (id CaseIdentifier) Validate() error {
	switch id.Kind {
	case CourtNCLT:
		if id.FilingNumber == "" {
			return ErrMissingIdentifier
		}
	case CourtCAT:
		if id.DiaryNumber == "" || id.CaseYear == "" || id.BenchID == "" {
			return ErrMissingIdentifier
		}
	default:
		if id.CNR == "" {
			return ErrMissingIdentifier
		}
	}
	return nil
}

// Key returns the natural key used for uniqueness within a workspace and court.
func (id CaseIdentifier) Key() string {
	switch id.Kind {
	case CourtNCLT:
		return id.FilingNumber
	case CourtCAT:
		return id.DiaryNumber + "/" + id.CaseYear + "@" + id.BenchID
	default:
		return id.CNR
	}
}

// RequestBody builds the case data request payload for the court family.
func (id CaseIdentifier) RequestBody() map[string]string {
	switch id.Kind {
	case CourtNCLT:
		return map[string]string{"filingNumber": id.FilingNumber}
	case CourtCAT:
		return map[string]string{
			"benchId":     id.BenchID,
			"diaryNumber": id.DiaryNumber,
			"caseYear":    id.CaseYear,
		}
	case CourtConsumer:
		return map[string]string{"caseNumber": id.CNR}
	default:
		return map[string]string{"cnr": id.CNR}
	}
}

// Display returns a human label and value for notifications and logs.
func (id CaseIdentifier) Display() (label, value string) {
	switch id.Kind {
	case CourtNCLT:
		return "Filing Number", id.FilingNumber
	case CourtCAT:
		return "Diary Number", id.DiaryNumber + "/" + id.CaseYear
	case CourtConsumer:
		return "Case Number", id.CNR
	default:
		return "CNR", id.CNR
	}
}

// SplitDiaryNumber splits a "number/year" diary reference. ok is false when
// the input is not in that form.
func SplitDiaryNumber(s string) (number, year string, ok bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	number = strings.TrimSpace(parts[0])
	year = strings.TrimSpace(parts[1])
	if number == "" || year == "" {
		return "", "", false
	}
	return number, year, true
}
