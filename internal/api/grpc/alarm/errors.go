package alarm

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-engine/internal/battle"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/logger"
)

// toStatus maps engine errors to gRPC status errors.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code

	switch {
	case errors.Is(err, domain.ErrInvalidAlarmData), errors.Is(err, domain.ErrInvalidBattleAlarmData):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrAlarmNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrAccessDenied):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return status.Error(codes.ResourceExhausted, domain.ErrRateLimitExceeded.Error())
	case errors.Is(err, domain.ErrStorageFailure):
		code = codes.Unavailable
	case errors.Is(err, battle.ErrDisabled):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		logger.ErrorKV(ctx, "Unexpected engine error", "error", err)

		return status.Error(codes.Internal, "internal error")
	}

	return status.Error(code, err.Error())
}

func invalidRequest(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
