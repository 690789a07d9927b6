package httphandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ericfisherdev/casewatch/internal/application"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// CreditUseCases is the slice of the credit service the API exposes.
type CreditUseCases interface {
	DebitResearch(ctx context.Context, workspaceID, actingUserID int64) (model.DebitResult, error)
	DebitExtraction(ctx context.Context, workspaceID, actingUserID, amount int64, category string) (model.DebitResult, error)
	Balance(ctx context.Context, workspaceID int64, kind model.CreditKind) (model.CreditAccount, error)
	Usage(ctx context.Context, ownerID int64, kind model.CreditKind, limit int) ([]model.CreditUsage, error)
	Award(ctx context.Context, ownerID int64, kind model.CreditKind, balance int64) (model.CreditAccount, error)
	ProvisionWorkspace(ctx context.Context, ownerName, ownerEmail, workspaceName string) (model.User, model.Workspace, error)
}

// ExtractionUseCases is the slice of the extraction service the API exposes.
type ExtractionUseCases interface {
	SaveExtractions(ctx context.Context, req application.SaveExtractionsRequest) ([]model.ExtractedDocument, error)
	ListExtractions(ctx context.Context, workspaceID int64) ([]model.ExtractedDocument, error)
	GetExtraction(ctx context.Context, id int64) (model.ExtractedDocument, error)
}

// CaseUseCases is the slice of the case service the API exposes.
type CaseUseCases interface {
	Follow(ctx context.Context, req application.FollowRequest) (model.FollowedCase, error)
	Unfollow(ctx context.Context, workspaceID int64, court, caseID, benchID string) error
	List(ctx context.Context, workspaceID int64, court string) ([]model.FollowedCase, error)
}

// PollUseCases is the slice of the poll service the API exposes.
type PollUseCases interface {
	Configure(ctx context.Context, req application.ConfigureRequest) (model.PollConfig, application.Recurrence, error)
	GetConfig(ctx context.Context, workspaceID int64, role string) (model.PollConfig, application.Recurrence, error)
	Stop(ctx context.Context, workspaceID int64, role string) error
	Scheduled(workspaceID int64, role string) bool
}

var (
	_ CreditUseCases     = (*application.CreditService)(nil)
	_ ExtractionUseCases = (*application.ExtractionService)(nil)
	_ CaseUseCases       = (*application.CaseService)(nil)
	_ PollUseCases       = (*application.PollService)(nil)
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	credits     CreditUseCases
	extractions ExtractionUseCases
	cases       CaseUseCases
	polls       PollUseCases
	auth        *Authenticator
	logger      *zap.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	credits CreditUseCases,
	extractions ExtractionUseCases,
	cases CaseUseCases,
	polls PollUseCases,
	auth *Authenticator,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		credits:     credits,
		extractions: extractions,
		cases:       cases,
		polls:       polls,
		auth:        auth,
		logger:      logger,
	}
}

// NewRouter creates an http.Handler with all routes registered. Tenant routes
// require a bearer token; admin routes require adminToken in X-Admin-Token.
func NewRouter(h *Handler, adminToken string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery innermost so panics are caught before logging.
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))

	r.Get("/api/v1/health", h.Health)

	r.Group(func(pr chi.Router) {
		pr.Use(requireAdmin(adminToken))
		pr.Post("/api/v1/admin/workspaces", h.ProvisionWorkspace)
		pr.Put("/api/v1/admin/credits/{kind}", h.AwardCredit)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.auth.Middleware)

		pr.Post("/api/v1/credits/research/debit", h.DebitResearch)
		pr.Post("/api/v1/credits/extraction/debit", h.DebitExtraction)
		pr.Get("/api/v1/credits/{kind}", h.GetBalance)
		pr.Get("/api/v1/credits/{kind}/usage", h.ListUsage)

		pr.Post("/api/v1/extractions", h.SaveExtractions)
		pr.Get("/api/v1/extractions/{id}", h.GetExtraction)

		pr.Route("/api/v1/workspaces/{workspaceID}", func(wr chi.Router) {
			wr.Use(requireWorkspace)

			wr.Get("/extractions", h.ListExtractions)

			wr.Get("/cases", h.ListCases)
			wr.Post("/cases", h.FollowCase)
			wr.Delete("/cases", h.UnfollowCase)

			wr.Get("/poll/{role}", h.GetPollConfig)
			wr.Put("/poll/{role}", h.ConfigurePoll)
			wr.Delete("/poll/{role}", h.StopPoll)
		})
	})

	return r
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// principal returns the authenticated caller. The auth middleware guarantees
// one is present on every tenant route.
func principal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
