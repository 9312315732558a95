package http

import (
	"net/http"
	"strconv"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/service"
	"battery-rental-backend/internal/utils"

	"github.com/go-chi/render"
	"github.com/gorilla/mux"
)

// Handler serves the REST API.
type Handler struct {
	rentals    service.RentalService
	stations   service.StationService
	admin      service.AdminService
	minorUnits int32
}

func NewHandler(rentals service.RentalService, stations service.StationService, admin service.AdminService, minorUnits int32) *Handler {
	return &Handler{
		rentals:    rentals,
		stations:   stations,
		admin:      admin,
		minorUnits: minorUnits,
	}
}

type stationRequest struct {
	StationID domain.StationID `json:"station_id"`
}

type abandonRequest struct {
	Reason string `json:"reason"`
}

type feeRangeResponse struct {
	Min        int64  `json:"min_cents"`
	Max        *int64 `json:"max_cents,omitempty"`
	MinDisplay string `json:"min"`
	MaxDisplay string `json:"max,omitempty"`
}

type checkoutResponse struct {
	RentalID     domain.RentalID  `json:"rental_id"`
	BatteryID    domain.BatteryID `json:"battery_id"`
	StationID    domain.StationID `json:"station_id"`
	RentedAt     time.Time        `json:"rented_at"`
	EstimatedFee feeRangeResponse `json:"estimated_fee"`
}

type returnResponse struct {
	RentalID        domain.RentalID  `json:"rental_id"`
	BatteryID       domain.BatteryID `json:"battery_id"`
	ReturnStationID domain.StationID `json:"return_station_id"`
	FeeCents        int64            `json:"fee_cents"`
	Fee             string           `json:"fee"`
	DurationSeconds int64            `json:"duration_seconds"`
	ReturnedAt      time.Time        `json:"returned_at"`
}

type auditResponse struct {
	OpenRentals          int                `json:"open_rentals"`
	InUseBatteries       int                `json:"in_use_batteries"`
	OrphanedRentals      []domain.RentalID  `json:"orphaned_rentals"`
	UnaccountedBatteries []domain.BatteryID `json:"unaccounted_batteries"`
	ReleasedBatteries    []domain.BatteryID `json:"released_batteries"`
	Consistent           bool               `json:"consistent"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req stationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request format")
		return
	}
	if req.StationID <= 0 {
		badRequest(w, r, "station_id is required")
		return
	}

	receipt, err := h.rentals.Checkout(r.Context(), claims.UserID, req.StationID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, checkoutResponse{
		RentalID:     receipt.RentalID,
		BatteryID:    receipt.BatteryID,
		StationID:    receipt.StationID,
		RentedAt:     receipt.RentedAt,
		EstimatedFee: h.feeRange(receipt.EstimatedFee),
	})
}

func (h *Handler) ReturnBattery(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	rentalID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid rental id")
		return
	}

	var req stationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request format")
		return
	}
	if req.StationID <= 0 {
		badRequest(w, r, "station_id is required")
		return
	}

	receipt, err := h.rentals.ReturnBattery(r.Context(), claims.UserID, domain.RentalID(rentalID), req.StationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, h.returnResponse(receipt))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	history, err := h.stations.GetHistory(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, history)
}

// SearchStations takes lat, lng, radius_km and an optional limit. Without
// any of the three it lists every station.
func (h *Handler) SearchStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("lat") && !q.Has("lng") && !q.Has("radius_km") {
		stations, err := h.stations.ListStations(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, stations)
		return
	}
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	radius, errRadius := strconv.ParseFloat(q.Get("radius_km"), 64)
	if errLat != nil || errLng != nil || errRadius != nil {
		badRequest(w, r, "lat, lng and radius_km are required numbers")
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, r, "invalid limit")
			return
		}
		limit = n
	}

	seq, err := h.stations.SearchStations(r.Context(), domain.Location{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeError(w, r, err)
		return
	}

	results := []domain.StationAvailability{}
	for st := range seq {
		results = append(results, st)
		if limit > 0 && len(results) == limit {
			break
		}
	}
	render.JSON(w, r, results)
}

func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid station id")
		return
	}
	detail, err := h.stations.GetStation(r.Context(), domain.StationID(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

func (h *Handler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	batteryID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid battery id")
		return
	}

	b, err := h.admin.SetMaintenance(r.Context(), domain.BatteryID(batteryID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, b)
}

// ClearMaintenance returns the battery to service at station_id, or at its
// current station when the parameter is omitted.
func (h *Handler) ClearMaintenance(w http.ResponseWriter, r *http.Request) {
	batteryID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid battery id")
		return
	}
	var stationID int64
	if v := r.URL.Query().Get("station_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			badRequest(w, r, "invalid station_id")
			return
		}
		stationID = n
	}

	b, err := h.admin.ClearMaintenance(r.Context(), domain.BatteryID(batteryID), domain.StationID(stationID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, b)
}

func (h *Handler) AbandonRental(w http.ResponseWriter, r *http.Request) {
	rentalID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid rental id")
		return
	}

	var req abandonRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "invalid request format")
		return
	}

	rental, err := h.admin.AbandonRental(r.Context(), domain.RentalID(rentalID), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, rental)
}

func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	cases, err := h.admin.ListReconciliations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cases == nil {
		cases = []domain.ReconciliationCase{}
	}
	render.JSON(w, r, cases)
}

func (h *Handler) RetryReconciliation(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r, "invalid case id")
		return
	}

	receipt, err := h.admin.RetryReconciliation(r.Context(), caseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, h.returnResponse(receipt))
}

func (h *Handler) AuditInventory(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.AuditInventory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := auditResponse{
		OpenRentals:          report.OpenRentals,
		InUseBatteries:       report.InUseBatteries,
		OrphanedRentals:      report.OrphanedRentals,
		UnaccountedBatteries: report.UnaccountedBatteries,
		ReleasedBatteries:    report.ReleasedBatteries,
		Consistent:           report.Consistent(),
	}
	if resp.OrphanedRentals == nil {
		resp.OrphanedRentals = []domain.RentalID{}
	}
	if resp.UnaccountedBatteries == nil {
		resp.UnaccountedBatteries = []domain.BatteryID{}
	}
	if resp.ReleasedBatteries == nil {
		resp.ReleasedBatteries = []domain.BatteryID{}
	}
	render.JSON(w, r, resp)
}

func (h *Handler) feeRange(fr domain.FeeRange) feeRangeResponse {
	resp := feeRangeResponse{
		Min:        fr.Min,
		Max:        fr.Max,
		MinDisplay: utils.FormatMinor(fr.Min, h.minorUnits),
	}
	if fr.Max != nil {
		resp.MaxDisplay = utils.FormatMinor(*fr.Max, h.minorUnits)
	}
	return resp
}

func (h *Handler) returnResponse(receipt *domain.ReturnReceipt) returnResponse {
	return returnResponse{
		RentalID:        receipt.RentalID,
		BatteryID:       receipt.BatteryID,
		ReturnStationID: receipt.ReturnStationID,
		FeeCents:        receipt.FeeCents,
		Fee:             utils.FormatMinor(receipt.FeeCents, h.minorUnits),
		DurationSeconds: int64(receipt.Duration / time.Second),
		ReturnedAt:      receipt.ReturnedAt,
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}
