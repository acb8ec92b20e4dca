package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/stratum-embed/internal/handlers"
)

// NewRouter sets up the service routes
func NewRouter(jobs *handlers.JobHandler, health *handlers.HealthHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", health.HealthCheck).Methods(http.MethodGet)

	// Job processing, one job per request
	for _, path := range []string{"/", "/process"} {
		router.HandleFunc(path, jobs.ProcessJob).Methods(http.MethodPost)
		router.HandleFunc(path, jobs.Preflight).Methods(http.MethodOptions)
	}

	router.HandleFunc("/jobs/{jobID}", jobs.GetJobStatus).Methods(http.MethodGet)

	return router
}
