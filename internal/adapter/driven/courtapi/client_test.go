package courtapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/casewatch/internal/adapter/driven/courtapi"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

func newTestClient(t *testing.T, server *httptest.Server) *courtapi.Client {
	t.Helper()
	client, err := courtapi.NewClient(server.URL+"/", "test-key", zaptest.NewLogger(t),
		courtapi.WithHTTPClient(server.Client()),
		courtapi.WithRateLimit(rate.Inf, 1),
		courtapi.WithBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		}),
	)
	require.NoError(t, err)
	return client
}

func TestFetchCase_EndpointAndBodyPerCourt(t *testing.T) {
	tests := []struct {
		name     string
		id       model.CaseIdentifier
		wantPath string
		wantBody map[string]string
	}{
		{
			name:     "high court",
			id:       model.CaseIdentifier{Kind: model.CourtHigh, CNR: "HCBM010012342023"},
			wantPath: "/high-court/case/",
			wantBody: map[string]string{"cnr": "HCBM010012342023"},
		},
		{
			name:     "district court",
			id:       model.CaseIdentifier{Kind: model.CourtDistrict, CNR: "MHPU010012342023"},
			wantPath: "/district-court/case/",
			wantBody: map[string]string{"cnr": "MHPU010012342023"},
		},
		{
			name:     "nclt",
			id:       model.CaseIdentifier{Kind: model.CourtNCLT, FilingNumber: "2709138/00123/2023"},
			wantPath: "/national-company-law-tribunal/filing-number/",
			wantBody: map[string]string{"filingNumber": "2709138/00123/2023"},
		},
		{
			name:     "cat",
			id:       model.CaseIdentifier{Kind: model.CourtCAT, DiaryNumber: "123", CaseYear: "2024", BenchID: "7"},
			wantPath: "/central-administrative-tribunal/diary-number/",
			wantBody: map[string]string{"diaryNumber": "123", "caseYear": "2024", "benchId": "7"},
		},
		{
			name:     "consumer forum",
			id:       model.CaseIdentifier{Kind: model.CourtConsumer, CNR: "CC/45/2022"},
			wantPath: "/consumer-forum/case/",
			wantBody: map[string]string{"caseNumber": "CC/45/2022"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tt.wantBody, body)

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"Pending","next_hearing":"2024-05-01"}`))
			}))
			defer server.Close()

			obj, err := newTestClient(t, server).FetchCase(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, []string{"status", "next_hearing"}, obj.Keys())
			assert.Equal(t, "Pending", obj.StringField("status"))
		})
	}
}

func TestFetchCase_SuccessFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"case not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchCase(context.Background(),
		model.CaseIdentifier{Kind: model.CourtHigh, CNR: "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, courtapi.ErrProvider)
	assert.Contains(t, err.Error(), "case not found")
}

func TestFetchCase_SuccessTrueIsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"status":"Disposed"}`))
	}))
	defer server.Close()

	obj, err := newTestClient(t, server).FetchCase(context.Background(),
		model.CaseIdentifier{Kind: model.CourtHigh, CNR: "X"})
	require.NoError(t, err)
	assert.Equal(t, "Disposed", obj.StringField("status"))
}

func TestFetchCase_NonObjectResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "array", body: `[{"status":"Pending"}]`},
		{name: "string", body: `"ok"`},
		{name: "null", body: `null`},
		{name: "malformed", body: `{"status":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server).FetchCase(context.Background(),
				model.CaseIdentifier{Kind: model.CourtHigh, CNR: "X"})
			require.Error(t, err)
			assert.ErrorIs(t, err, courtapi.ErrProvider)
			assert.Equal(t, int32(1), calls.Load(), "malformed responses are not retried")
		})
	}
}

func TestFetchCase_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchCase(context.Background(),
		model.CaseIdentifier{Kind: model.CourtHigh, CNR: "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, courtapi.ErrProvider)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchCase_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"status":"Pending"}`))
		}
	}))
	defer server.Close()

	obj, err := newTestClient(t, server).FetchCase(context.Background(),
		model.CaseIdentifier{Kind: model.CourtHigh, CNR: "X"})
	require.NoError(t, err)
	assert.Equal(t, "Pending", obj.StringField("status"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchCase_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchCase(context.Background(),
		model.CaseIdentifier{Kind: model.CourtHigh, CNR: "X"})
	require.Error(t, err)
	assert.ErrorIs(t, err, courtapi.ErrProvider)
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := courtapi.NewClient("not a url", "key", zaptest.NewLogger(t))
	require.Error(t, err)
}
