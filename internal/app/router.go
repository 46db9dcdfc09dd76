package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/leadline-crm/apps/api/internal/audit"
	"github.com/leadline-crm/apps/api/internal/config"
	"github.com/leadline-crm/apps/api/internal/handlers"
	"github.com/leadline-crm/apps/api/internal/httpx"
	"github.com/leadline-crm/apps/api/internal/middleware"
	"github.com/leadline-crm/apps/api/internal/store"
)

func NewRouter(cfg config.Config, st *store.Store, pool *pgxpool.Pool, logger *slog.Logger) (http.Handler, error) {
	specPath := filepath.Join("openapi.yaml")
	if _, err := os.Stat(specPath); err != nil {
		return nil, fmt.Errorf("openapi spec not found at %s: %w", specPath, err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{PathPrefix: "/imports", MaxBytes: cfg.ImportMaxFileBytes},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	auditLogger := audit.NewLogger(st)
	h := handlers.NewServer(cfg, st, auditLogger, logger, pool)

	authMW := middleware.AuthMiddleware{Store: st, CookieName: cfg.SessionCookieName}
	loginLimiter := middleware.NewLoginRateLimiter(10, time.Minute)
	importLimiter := middleware.NewIPRateLimiterWithMaxEntries(30, time.Minute, cfg.RateLimitMaxIPs)
	csrf := middleware.EnforceCSRF(cfg.CSRFEnforce)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	api.Group(func(public chi.Router) {
		public.With(loginLimiter.Middleware).Post("/auth/login", h.PostAuthLogin)
		public.Get("/health", h.GetHealth)
	})

	api.Group(func(protected chi.Router) {
		protected.Use(authMW.RequireAuth)
		protected.Get("/auth/me", h.GetAuthMe)
		protected.Get("/auth/csrf", h.GetAuthCsrf)
		protected.With(csrf).Post("/auth/logout", h.PostAuthLogout)

		protected.Get("/properties", h.GetProperties)
		protected.Get("/properties/{propertyId}", h.GetProperty)
		protected.Get("/properties/{propertyId}/contacts", h.GetPropertyContacts)
		protected.Get("/properties/{propertyId}/merge-history", h.GetPropertyMergeHistory)
		protected.With(admin, csrf).Patch("/properties/{propertyId}", h.PatchProperty)
		protected.With(admin, csrf).Post("/properties/merge", h.PostPropertiesMerge)

		protected.Route("/imports", func(imports chi.Router) {
			imports.Use(importLimiter.Middleware("Too many import requests"))
			imports.With(admin, csrf).Post("/properties/preview", h.PostImportsPropertiesPreview)
			imports.With(admin, csrf).Post("/properties/commit", h.PostImportsPropertiesCommit)
			imports.With(admin, csrf).Post("/contacts/preview", h.PostImportsContactsPreview)
			imports.With(admin, csrf).Post("/contacts/commit", h.PostImportsContactsCommit)
			imports.Get("/{importRunId}", h.GetImportRun)
			imports.Get("/{importRunId}/errors.csv", h.GetImportRunErrorsCSV)
		})

		protected.With(admin).Get("/exports/properties.csv", h.GetExportsPropertiesCSV)
		protected.With(admin).Get("/exports/contacts.csv", h.GetExportsContactsCSV)
	})

	r.Mount("/api", api)
	return r, nil
}
