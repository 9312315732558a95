package grpc

import (
	"context"
	"strconv"

	"battery-rental-backend/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UserIDHeader is set by the auth interceptor from the validated token.
const UserIDHeader = "user-id"

// GetUserIDFromContext extracts the user ID from the gRPC metadata.
func GetUserIDFromContext(ctx context.Context) (domain.UserID, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	userIDs := md.Get(UserIDHeader)
	if len(userIDs) == 0 {
		return 0, status.Errorf(codes.Unauthenticated, "user_id is not provided in metadata")
	}

	userID, err := strconv.ParseInt(userIDs[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid user_id format: %q", userIDs[0])
	}
	return domain.UserID(userID), nil
}
