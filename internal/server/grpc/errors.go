package grpc

import (
	"errors"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrDeviceNotFound, codes.NotFound},
	{common.ErrSessionNotFound, codes.NotFound},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrDeviceDisabled, codes.FailedPrecondition},
	{common.ErrDeviceUnavailable, codes.FailedPrecondition},
	{common.ErrRecordHasOpenConflict, codes.FailedPrecondition},
	{common.ErrConflictAlreadyResolved, codes.FailedPrecondition},
	{common.ErrConflictUnresolved, codes.FailedPrecondition},
	{common.ErrStorageLimitExceeded, codes.FailedPrecondition},
	{common.ErrSessionInProgress, codes.AlreadyExists},
	{common.ErrConflictExists, codes.AlreadyExists},
	{common.ErrInvalidArgument, codes.InvalidArgument},
	{common.ErrUnknownTable, codes.InvalidArgument},
	{models.ErrInvalidPayload, codes.InvalidArgument},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrorUnauthorized, codes.Unauthenticated},
}

// toStatus maps service errors to gRPC status errors. Unknown errors become
// Internal without leaking their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return status.Error(e.code, err.Error())
		}
	}
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}
