package application_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ericfisherdev/casewatch/internal/application"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

func TestCaseService_Follow_DerivesIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		req  application.FollowRequest
		want model.CaseIdentifier
	}{
		{
			name: "high court prefers request cnr",
			req:  application.FollowRequest{Court: "Bombay High Court", CNR: "MHHC01", CaseData: parse(t, `{"cnr":"OTHER"}`)},
			want: model.CaseIdentifier{Kind: model.CourtHigh, CNR: "MHHC01"},
		},
		{
			name: "district court falls back to case data cnr",
			req:  application.FollowRequest{Court: "District Court, Pune", CaseID: "9", CaseData: parse(t, `{"cnr":"MHPU01"}`)},
			want: model.CaseIdentifier{Kind: model.CourtDistrict, CNR: "MHPU01"},
		},
		{
			name: "supreme court falls back to case id",
			req:  application.FollowRequest{Court: "Supreme Court", CaseID: "SC-1", CaseData: parse(t, `{}`)},
			want: model.CaseIdentifier{Kind: model.CourtHigh, CNR: "SC-1"},
		},
		{
			name: "consumer forum uses case number",
			req:  application.FollowRequest{Court: model.CourtNameConsumer, CaseData: parse(t, `{"caseNumber":"CC/12/2023"}`)},
			want: model.CaseIdentifier{Kind: model.CourtConsumer, CNR: "CC/12/2023"},
		},
		{
			name: "nclt prefers case data filing number",
			req:  application.FollowRequest{Court: model.CourtNameNCLT, CaseID: "X", CaseData: parse(t, `{"filingNumber":"2709138/00012/2024"}`)},
			want: model.CaseIdentifier{Kind: model.CourtNCLT, FilingNumber: "2709138/00012/2024"},
		},
		{
			name: "nclt falls back to request case id",
			req:  application.FollowRequest{Court: model.CourtNameNCLT, CaseID: "F-1", CaseData: parse(t, `{}`)},
			want: model.CaseIdentifier{Kind: model.CourtNCLT, FilingNumber: "F-1"},
		},
		{
			name: "cat splits diary number with year",
			req:  application.FollowRequest{Court: model.CourtNameCAT, BenchID: "3", CaseData: parse(t, `{"diaryNumber":"1234 / 2024"}`)},
			want: model.CaseIdentifier{Kind: model.CourtCAT, DiaryNumber: "1234", CaseYear: "2024", BenchID: "3"},
		},
		{
			name: "cat takes year and bench from case data",
			req:  application.FollowRequest{Court: model.CourtNameCAT, CaseData: parse(t, `{"diaryNumber":"55","caseYear":2023,"benchId":"9"}`)},
			want: model.CaseIdentifier{Kind: model.CourtCAT, DiaryNumber: "55", CaseYear: "2023", BenchID: "9"},
		},
		{
			name: "cat falls back to request fields",
			req:  application.FollowRequest{Court: model.CourtNameCAT, DiaryNumber: "77", CaseYear: "2022", BenchID: "1", CaseData: parse(t, `{}`)},
			want: model.CaseIdentifier{Kind: model.CourtCAT, DiaryNumber: "77", CaseYear: "2022", BenchID: "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockCaseStore{}
			svc := application.NewCaseService(store, zaptest.NewLogger(t))

			tt.req.WorkspaceID = 1
			fc, err := svc.Follow(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fc.Identifier())
		})
	}
}

func TestCaseService_Follow_NormalizesCaseData(t *testing.T) {
	store := &mockCaseStore{}
	svc := application.NewCaseService(store, zaptest.NewLogger(t))

	fc, err := svc.Follow(context.Background(), application.FollowRequest{
		WorkspaceID: 1,
		Court:       "Delhi High Court",
		CNR:         "DLHC01",
		CaseData:    parse(t, `{"title":"A v B","cnr":"DLHC01","bench":{"z":1,"a":2}}`),
	})
	require.NoError(t, err)

	obj, ok := model.AsObject(fc.CaseData)
	require.True(t, ok)
	assert.Equal(t, []string{"bench", "cnr", "title"}, obj.Keys())
}

func TestCaseService_Follow_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  application.FollowRequest
	}{
		{name: "missing court", req: application.FollowRequest{WorkspaceID: 1, CNR: "X", CaseData: model.NewObject()}},
		{name: "missing workspace", req: application.FollowRequest{Court: "Delhi High Court", CNR: "X", CaseData: model.NewObject()}},
		{name: "missing case data", req: application.FollowRequest{WorkspaceID: 1, Court: "Delhi High Court", CNR: "X"}},
		{name: "case data not an object", req: application.FollowRequest{WorkspaceID: 1, Court: "Delhi High Court", CNR: "X", CaseData: model.String("x")}},
		{name: "missing cnr", req: application.FollowRequest{WorkspaceID: 1, Court: "Delhi High Court", CaseData: model.NewObject()}},
		{name: "cat without year", req: application.FollowRequest{WorkspaceID: 1, Court: model.CourtNameCAT, DiaryNumber: "5", BenchID: "1", CaseData: model.NewObject()}},
		{name: "cat without bench", req: application.FollowRequest{WorkspaceID: 1, Court: model.CourtNameCAT, CaseData: parse(t, `{"diaryNumber":"123/2024"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockCaseStore{}
			svc := application.NewCaseService(store, zaptest.NewLogger(t))

			_, err := svc.Follow(context.Background(), tt.req)
			require.ErrorIs(t, err, application.ErrValidation)
			assert.Empty(t, store.cases)
		})
	}
}

func TestCaseService_Follow_Duplicate(t *testing.T) {
	store := &mockCaseStore{}
	svc := application.NewCaseService(store, zaptest.NewLogger(t))
	req := application.FollowRequest{WorkspaceID: 1, Court: "Delhi High Court", CNR: "DLHC01", CaseData: model.NewObject()}

	_, err := svc.Follow(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Follow(context.Background(), req)
	require.ErrorIs(t, err, driven.ErrCaseAlreadyFollowed)
}

func TestCaseService_Unfollow(t *testing.T) {
	store := &mockCaseStore{}
	svc := application.NewCaseService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.Follow(ctx, application.FollowRequest{
		WorkspaceID: 1,
		Court:       model.CourtNameCAT,
		BenchID:     "3",
		CaseData:    parse(t, `{"diaryNumber":"1234/2024"}`),
	})
	require.NoError(t, err)

	err = svc.Unfollow(ctx, 1, model.CourtNameCAT, "1234", "3")
	require.ErrorIs(t, err, application.ErrValidation)

	err = svc.Unfollow(ctx, 1, model.CourtNameCAT, "1234/2024", "")
	require.ErrorIs(t, err, application.ErrValidation)

	err = svc.Unfollow(ctx, 1, model.CourtNameCAT, "1234/2024", "4")
	require.ErrorIs(t, err, driven.ErrCaseNotFound)

	require.NoError(t, svc.Unfollow(ctx, 1, model.CourtNameCAT, "1234/2024", "3"))
	assert.Empty(t, store.cases)

	err = svc.Unfollow(ctx, 1, "Delhi High Court", "", "")
	require.ErrorIs(t, err, application.ErrValidation)
}

func TestCaseService_Unfollow_FallsBackToRowID(t *testing.T) {
	store := &mockCaseStore{}
	svc := application.NewCaseService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	fc, err := svc.Follow(ctx, application.FollowRequest{WorkspaceID: 1, Court: "Delhi High Court", CNR: "DLHC01", CaseData: model.NewObject()})
	require.NoError(t, err)
	other, err := svc.Follow(ctx, application.FollowRequest{WorkspaceID: 2, Court: "Delhi High Court", CNR: "DLHC02", CaseData: model.NewObject()})
	require.NoError(t, err)

	rowID := strconv.FormatInt(fc.ID, 10)
	otherRowID := strconv.FormatInt(other.ID, 10)

	err = svc.Unfollow(ctx, 1, "Delhi High Court", otherRowID, "")
	require.ErrorIs(t, err, driven.ErrCaseNotFound, "row ids of other workspaces do not match")

	err = svc.Unfollow(ctx, 1, model.CourtNameNCLT, rowID, "")
	require.ErrorIs(t, err, driven.ErrCaseNotFound, "nclt is keyed by filing number only")

	require.NoError(t, svc.Unfollow(ctx, 1, "Delhi High Court", rowID, ""))
	remaining, err := svc.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCaseService_CATWithoutBenchIsRejected(t *testing.T) {
	store := &mockCaseStore{}
	svc := application.NewCaseService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.Follow(ctx, application.FollowRequest{
		WorkspaceID: 1,
		Court:       model.CourtNameCAT,
		CaseData:    parse(t, `{"diaryNumber":"123/2024"}`),
	})
	require.ErrorIs(t, err, application.ErrValidation)
	assert.Contains(t, err.Error(), "bench id")
	assert.Empty(t, store.cases)

	err = svc.Unfollow(ctx, 1, model.CourtNameCAT, "123/2024", "")
	require.ErrorIs(t, err, application.ErrValidation)
}
