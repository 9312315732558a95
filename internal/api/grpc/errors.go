package grpc

import (
	"context"
	"errors"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/registry"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{domain.ErrInvalidArgument, codes.InvalidArgument},
	{domain.ErrInvalidInterval, codes.InvalidArgument},
	{domain.ErrNotFound, codes.NotFound},
	{domain.ErrStationNotFound, codes.NotFound},
	{domain.ErrBatteryNotFound, codes.NotFound},
	{domain.ErrCaseNotFound, codes.NotFound},
	{domain.ErrAccountNotFound, codes.NotFound},
	{domain.ErrNoAvailableBattery, codes.ResourceExhausted},
	{domain.ErrConcurrencyLimitExceeded, codes.ResourceExhausted},
	{domain.ErrInsufficientBalance, codes.FailedPrecondition},
	{domain.ErrAlreadyClosed, codes.FailedPrecondition},
	{domain.ErrInvalidTransition, codes.FailedPrecondition},
	{domain.ErrReconciliationPending, codes.FailedPrecondition},
	{domain.ErrBatteryAlreadyRented, codes.AlreadyExists},
	{registry.ErrRegistryClosed, codes.Unavailable},
}

// toStatus converts a service error into a gRPC status error.
func toStatus(ctx context.Context, err error) error {
	var ice *domain.InternalConsistencyError
	if errors.As(err, &ice) {
		logger.ErrorContext(ctx, "Internal consistency error", "ticket", ice.Ticket, "rentalID", ice.RentalID, "error", err)
		return status.Error(codes.Internal, ice.UserMessage())
	}

	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	logger.ErrorContext(ctx, "RPC failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
