package grpc

import (
	"context"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/service"
	"battery-rental-backend/internal/utils"

	"google.golang.org/grpc"
)

type RentalHandler struct {
	UnimplementedRentalServiceServer
	rentalSvc  service.RentalService
	stationSvc service.StationService
	minorUnits int32
}

func NewRentalHandler(rentalSvc service.RentalService, stationSvc service.StationService, minorUnits int32) *RentalHandler {
	return &RentalHandler{
		rentalSvc:  rentalSvc,
		stationSvc: stationSvc,
		minorUnits: minorUnits,
	}
}

func (h *RentalHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := h.rentalSvc.Checkout(ctx, userID, req.StationID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &CheckoutResponse{
		RentalID:     receipt.RentalID,
		BatteryID:    receipt.BatteryID,
		StationID:    receipt.StationID,
		RentedAt:     receipt.RentedAt,
		EstimatedFee: receipt.EstimatedFee,
	}, nil
}

func (h *RentalHandler) ReturnBattery(ctx context.Context, req *ReturnBatteryRequest) (*ReturnBatteryResponse, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := h.rentalSvc.ReturnBattery(ctx, userID, req.RentalID, req.StationID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ReturnBatteryResponse{
		RentalID:        receipt.RentalID,
		BatteryID:       receipt.BatteryID,
		ReturnStationID: receipt.ReturnStationID,
		FeeCents:        receipt.FeeCents,
		Fee:             utils.FormatMinor(receipt.FeeCents, h.minorUnits),
		DurationSeconds: int64(receipt.Duration / time.Second),
		ReturnedAt:      receipt.ReturnedAt,
	}, nil
}

// SearchStations streams stations nearest first. The stream stops at the
// requested limit or when the client goes away.
func (h *RentalHandler) SearchStations(req *SearchStationsRequest, stream grpc.ServerStreamingServer[StationAvailability]) error {
	ctx := stream.Context()

	seq, err := h.stationSvc.SearchStations(ctx, domain.Location{Lat: req.Lat, Lng: req.Lng}, req.RadiusKm)
	if err != nil {
		return toStatus(ctx, err)
	}

	sent := 0
	for st := range seq {
		if err := ctx.Err(); err != nil {
			return toStatus(ctx, err)
		}
		if err := stream.Send(&st); err != nil {
			return err
		}
		sent++
		if req.Limit > 0 && sent == req.Limit {
			break
		}
	}
	return nil
}

func (h *RentalHandler) GetHistory(ctx context.Context, req *GetHistoryRequest) (*GetHistoryResponse, error) {
	userID, err := GetUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rentals, err := h.stationSvc.GetHistory(ctx, userID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &GetHistoryResponse{Rentals: rentals}, nil
}
