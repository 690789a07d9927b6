package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"go.uber.org/zap"
)

// FollowRequest asks for a court case to be tracked by a workspace. Which of
// the identifier fields are consulted depends on the court.
type FollowRequest struct {
	WorkspaceID int64
	Court       string
	CaseID      string
	CNR         string
	DiaryNumber string
	CaseYear    string
	BenchID     string
	CaseData    model.Value
	// Payload is the complete request as received, stored for audit.
	Payload model.Value
}

// CaseService manages the cases a workspace follows.
type CaseService struct {
	cases  driven.CaseStore
	logger *zap.Logger
}

// NewCaseService creates a CaseService.
func NewCaseService(cases driven.CaseStore, logger *zap.Logger) *CaseService {
	return &CaseService{cases: cases, logger: logger}
}

// Follow starts tracking a case. It returns driven.ErrCaseAlreadyFollowed if
// the workspace already follows the same case in the same court.
func (s *CaseService) Follow(ctx context.Context, req FollowRequest) (model.FollowedCase, error) {
	if req.Court == "" || req.WorkspaceID <= 0 || req.CaseData == nil {
		return model.FollowedCase{}, fmt.Errorf("%w: court, workspace and case data are required", ErrValidation)
	}
	caseData, ok := model.AsObject(req.CaseData)
	if !ok {
		return model.FollowedCase{}, fmt.Errorf("%w: case data must be an object", ErrValidation)
	}

	fc := model.FollowedCase{
		WorkspaceID: req.WorkspaceID,
		Court:       req.Court,
		CaseData:    model.Normalize(caseData),
		Payload:     model.Normalize(req.Payload),
	}
	deriveIdentifiers(&fc, req, caseData)

	if err := fc.Identifier().Validate(); err != nil {
		kind := model.ClassifyCourt(req.Court)
		if kind == model.CourtCAT {
			return model.FollowedCase{}, fmt.Errorf("%w: diary number, case year and bench id are required for %s", ErrValidation, req.Court)
		}
		return model.FollowedCase{}, fmt.Errorf("%w: %s is required for %s", ErrValidation, kind.IdentifierField(), req.Court)
	}

	saved, err := s.cases.Add(ctx, fc)
	if err != nil {
		return model.FollowedCase{}, err
	}

	s.logger.Info("case followed",
		zap.Int64("workspace_id", saved.WorkspaceID),
		zap.String("court", saved.Court),
		zap.String("case_key", saved.Identifier().Key()),
	)
	return saved, nil
}

// deriveIdentifiers fills the court-specific identifier fields of fc from the
// request, falling back to fields of the case data.
func deriveIdentifiers(fc *model.FollowedCase, req FollowRequest, caseData *model.Object) {
	switch model.ClassifyCourt(req.Court) {
	case model.CourtConsumer:
		fc.CNR = firstNonEmpty(req.CNR, req.CaseID, caseData.StringField("caseNumber"))
	case model.CourtNCLT:
		fc.FilingNumber = firstNonEmpty(caseData.StringField("filingNumber"), caseData.StringField("caseId"), req.CaseID)
	case model.CourtCAT:
		if diary := caseData.StringField("diaryNumber"); diary != "" {
			if strings.Contains(diary, "/") {
				fc.DiaryNumber, fc.CaseYear, _ = model.SplitDiaryNumber(diary)
			} else {
				fc.DiaryNumber = diary
				fc.CaseYear = firstNonEmpty(caseData.StringField("caseYear"), req.CaseYear)
			}
		} else {
			fc.DiaryNumber = req.DiaryNumber
			fc.CaseYear = req.CaseYear
		}
		fc.BenchID = firstNonEmpty(req.BenchID, caseData.StringField("benchId"))
	default:
		fc.CNR = firstNonEmpty(req.CNR, caseData.StringField("cnr"), req.CaseID)
		fc.BenchID = req.BenchID
	}
}

// Unfollow stops tracking a case identified the way its court identifies it.
// CAT cases take "diary/year" as caseID plus a bench id. For CNR-keyed courts
// a caseID matching no CNR is retried as the followed case's row id.
func (s *CaseService) Unfollow(ctx context.Context, workspaceID int64, court, caseID, benchID string) error {
	if caseID == "" {
		return fmt.Errorf("%w: case id is required", ErrValidation)
	}

	id := model.CaseIdentifier{Kind: model.ClassifyCourt(court)}
	switch id.Kind {
	case model.CourtNCLT:
		id.FilingNumber = caseID
	case model.CourtCAT:
		number, year, ok := model.SplitDiaryNumber(caseID)
		if !ok || benchID == "" {
			return fmt.Errorf("%w: CAT cases need diaryNumber/caseYear and a bench id", ErrValidation)
		}
		id.DiaryNumber, id.CaseYear, id.BenchID = number, year, benchID
	default:
		id.CNR = caseID
	}

	err := s.cases.Remove(ctx, workspaceID, court, id.Key())
	if errors.Is(err, driven.ErrCaseNotFound) && id.Kind != model.CourtNCLT && id.Kind != model.CourtCAT {
		if rowID, parseErr := strconv.ParseInt(caseID, 10, 64); parseErr == nil && rowID > 0 {
			err = s.cases.RemoveByID(ctx, workspaceID, rowID)
		}
	}
	if err != nil {
		return err
	}

	s.logger.Info("case unfollowed",
		zap.Int64("workspace_id", workspaceID),
		zap.String("court", court),
		zap.String("case_key", id.Key()),
	)
	return nil
}

// List returns the workspace's followed cases, newest first. An empty court
// lists every court.
func (s *CaseService) List(ctx context.Context, workspaceID int64, court string) ([]model.FollowedCase, error) {
	return s.cases.ListByWorkspace(ctx, workspaceID, court)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
