package service

import (
	"context"
	"fmt"
	"iter"
	"math"

	"battery-rental-backend/internal/availability"
	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"
)

type stationService struct {
	index       StationIndex
	registry    StationRegistry
	rentalRepo  repository.RentalRepository
	maxRadiusKm float64
}

// NewStationService serves read-only queries. maxRadiusKm <= 0 leaves the
// search radius unbounded.
func NewStationService(index StationIndex, registry StationRegistry, rentalRepo repository.RentalRepository, maxRadiusKm float64) StationService {
	return &stationService{
		index:       index,
		registry:    registry,
		rentalRepo:  rentalRepo,
		maxRadiusKm: maxRadiusKm,
	}
}

func (s *stationService) SearchStations(ctx context.Context, origin domain.Location, radiusKm float64) (iter.Seq[domain.StationAvailability], error) {
	if !availability.ValidLocation(origin) {
		return nil, fmt.Errorf("%w: location %.6f,%.6f", domain.ErrInvalidArgument, origin.Lat, origin.Lng)
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, fmt.Errorf("%w: radius must be positive", domain.ErrInvalidArgument)
	}
	if s.maxRadiusKm > 0 && radiusKm > s.maxRadiusKm {
		radiusKm = s.maxRadiusKm
	}
	return s.index.Search(origin, radiusKm), nil
}

// ListStations returns every station with its available count, ordered by ID.
func (s *stationService) ListStations(ctx context.Context) ([]domain.StationDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.registry.Snapshot()
	out := make([]domain.StationDetail, 0, len(snap.Stations))
	for _, st := range snap.Stations {
		out = append(out, domain.StationDetail{Station: st.Station, AvailableCount: st.Available})
	}
	return out, nil
}

// GetStation returns one station with the batteries docked there.
func (s *stationService) GetStation(ctx context.Context, stationID domain.StationID) (*domain.StationDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.registry.Station(stationID); err != nil {
		return nil, err
	}

	snap := s.registry.Snapshot()
	detail := &domain.StationDetail{Batteries: []domain.Battery{}}
	for _, st := range snap.Stations {
		if st.Station.ID == stationID {
			detail.Station = st.Station
			detail.AvailableCount = st.Available
			break
		}
	}
	for _, b := range snap.Batteries {
		if b.StationID != nil && *b.StationID == stationID {
			detail.Batteries = append(detail.Batteries, b)
		}
	}
	return detail, nil
}

// GetHistory returns the user's closed rentals, newest first, with battery
// serials and station names filled in from the registry.
func (s *stationService) GetHistory(ctx context.Context, userID domain.UserID) ([]domain.RentalSummary, error) {
	logger.EnterMethod("stationService.GetHistory", "userID", userID)

	rentals, err := s.rentalRepo.ListByUser(ctx, userID, domain.RentalStateClosed)
	if err != nil {
		logger.ExitMethodWithError("stationService.GetHistory", err, "userID", userID)
		return nil, err
	}

	summaries := make([]domain.RentalSummary, 0, len(rentals))
	for _, rt := range rentals {
		if rt.ReturnedAt == nil || rt.FeeCents == nil {
			logger.Warn("Closed rental without return data", "rentalID", rt.ID)
			continue
		}
		sum := domain.RentalSummary{
			RentalID:        rt.ID,
			BatteryID:       rt.BatteryID,
			StationID:       rt.StationID,
			ReturnStationID: rt.ReturnStationID,
			RentedAt:        rt.RentedAt,
			ReturnedAt:      *rt.ReturnedAt,
			FeeCents:        *rt.FeeCents,
		}
		if b, err := s.registry.Battery(rt.BatteryID); err == nil {
			sum.BatterySerial = b.Serial
		}
		if st, err := s.registry.Station(rt.StationID); err == nil {
			sum.StationName = st.Name
		}
		if rt.ReturnStationID != nil {
			if st, err := s.registry.Station(*rt.ReturnStationID); err == nil {
				sum.ReturnStationName = st.Name
			}
		}
		summaries = append(summaries, sum)
	}

	logger.ExitMethod("stationService.GetHistory", "userID", userID, "count", len(summaries))
	return summaries, nil
}
