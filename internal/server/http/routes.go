package http

import (
	"net/http"

	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the API under /api plus /health and /metrics.
//
//	POST   /api/auth/signup
//	POST   /api/auth/signin
//	GET    /api/version
//	GET    /api/user/profile               (auth)
//	GET    /api/s3/buckets                 (auth)
//	POST   /api/s3/buckets                 (auth)
//	DELETE /api/s3/buckets/{id}            (auth)
//	PUT    /api/s3/buckets/{id}/default    (auth)
//	GET    /api/s3/files                   (auth)
//	POST   /api/s3/folder                  (auth)
//	POST   /api/s3/share                   (auth)
//	GET    /api/s3/download                (auth)
//	POST   /api/s3/upload                  (auth, multipart)
//	DELETE /api/s3/delete                  (auth)
//	POST   /api/s3/test                    (auth)
//
// gatherer may be nil, in which case /metrics is not mounted.
func NewRouter(h *Handler, jwtSecret []byte, m *metrics.Metrics, gatherer prometheus.Gatherer, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithRequestLogging(logger.With("module", "http_access"), m))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", h.Health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

		r.Post("/auth/signup", h.SignUp)
		r.Post("/auth/signin", h.SignIn)
		r.Get("/version", h.Version)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(jwtSecret))

			r.Get("/user/profile", h.Profile)

			r.Route("/s3", func(r chi.Router) {
				r.Get("/buckets", h.ListBuckets)
				r.Post("/buckets", h.AddBucket)
				r.Delete("/buckets/{id}", h.RemoveBucket)
				r.Put("/buckets/{id}/default", h.SetDefaultBucket)

				r.Get("/files", h.ListFiles)
				r.Post("/folder", h.CreateFolder)
				r.Post("/share", h.Share)
				r.Get("/download", h.Download)
				r.Post("/upload", h.Upload)
				r.Delete("/delete", h.DeleteFile)
				r.Post("/test", h.TestConnection)
			})
		})
	})

	return r
}
