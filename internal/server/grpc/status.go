package grpc

import (
	"errors"

	"github.com/dmitrijs2005/bookly/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC statuses. Only static messages cross
// the wire.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var ue *common.Error
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.As(err, &ue) && errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, ue.Message)
	case errors.As(err, &ue) && errors.Is(err, common.ErrUpload):
		return status.Error(codes.Unavailable, ue.Message)
	}
	return status.Error(codes.Internal, "internal error")
}
