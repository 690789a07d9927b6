package model

import "time"

// FollowedCase is an external court case tracked by a workspace.
type FollowedCase struct {
	ID           int64
	WorkspaceID  int64
	Court        string
	CNR          string
	FilingNumber string
	DiaryNumber  string
	CaseYear     string
	BenchID      string
	// CaseData is the case record supplied when the case was followed.
	CaseData Value
	// Payload is the full follow request, kept for audit.
	Payload Value
	// Snapshot is the raw stored snapshot from the last poll; nil before the
	// first poll or after a corrupt snapshot was cleared.
	Snapshot   []byte
	FollowedAt time.Time
}

// Identifier returns the court-specific identifiers of the case.
func (c FollowedCase) Identifier() CaseIdentifier {
	return CaseIdentifier{
		Kind:         ClassifyCourt(c.Court),
		CNR:          c.CNR,
		FilingNumber: c.FilingNumber,
		DiaryNumber:  c.DiaryNumber,
		CaseYear:     c.CaseYear,
		BenchID:      c.BenchID,
	}
}
