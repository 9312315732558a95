package http

import (
	"net/http"

	"battery-rental-backend/internal/security"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires the REST routes. Everything under /api/v1 needs a bearer
// token; /api/v1/admin also needs the admin role.
func NewRouter(h *Handler, tm security.TokenManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(Authenticate(tm))
	api.HandleFunc("/rentals", h.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/rentals/history", h.History).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id:[0-9]+}/return", h.ReturnBattery).Methods(http.MethodPost)
	api.HandleFunc("/stations", h.SearchStations).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id:[0-9]+}", h.GetStation).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(RequireRole(security.RoleAdmin))
	admin.HandleFunc("/batteries/{id:[0-9]+}/maintenance", h.SetMaintenance).Methods(http.MethodPost)
	admin.HandleFunc("/batteries/{id:[0-9]+}/maintenance", h.ClearMaintenance).Methods(http.MethodDelete)
	admin.HandleFunc("/rentals/{id:[0-9]+}/abandon", h.AbandonRental).Methods(http.MethodPost)
	admin.HandleFunc("/reconciliations", h.ListReconciliations).Methods(http.MethodGet)
	admin.HandleFunc("/reconciliations/{id:[0-9]+}/retry", h.RetryReconciliation).Methods(http.MethodPost)
	admin.HandleFunc("/audit", h.AuditInventory).Methods(http.MethodPost)

	return r
}
