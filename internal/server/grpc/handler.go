package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/rpc"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handler struct {
	store  store.Store
	logger logging.Logger
}

// toStatus maps store errors onto gRPC codes. Internal details are logged
// and not sent to the caller.
func (h *handler) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		h.logger.Error(ctx, op+" failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (h *handler) Get(ctx context.Context, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	if req.OwnerID == "" || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "owner and id are required")
	}

	r, err := h.store.Get(ctx, req.OwnerID, req.ID)
	if err != nil {
		return nil, h.toStatus(ctx, "get", err)
	}

	return &rpc.GetResponse{Record: r}, nil
}

func (h *handler) List(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	if req.Query.OwnerID == "" {
		return nil, status.Error(codes.InvalidArgument, "owner is required")
	}

	rs, err := h.store.List(ctx, req.Query)
	if err != nil {
		return nil, h.toStatus(ctx, "list", err)
	}

	return &rpc.ListResponse{Records: rs}, nil
}

func (h *handler) Commit(ctx context.Context, req *rpc.CommitRequest) (*rpc.CommitResponse, error) {
	b := req.Batch()

	if err := h.store.Commit(ctx, req.OwnerID, b); err != nil {
		return nil, h.toStatus(ctx, "commit", err)
	}

	h.logger.Debug(ctx, "Batch committed", "owner", req.OwnerID, "puts", len(b.Puts), "deletes", len(b.Deletes))
	return &rpc.CommitResponse{Applied: b.Len()}, nil
}

func (h *handler) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {

	return &rpc.PingResponse{Status: "OK"}, nil

}

func (h *handler) Watch(req *rpc.WatchRequest, stream rpc.WatchServer) error {
	ctx := stream.Context()

	if req.Query.OwnerID == "" {
		return status.Error(codes.InvalidArgument, "owner is required")
	}

	snapshots, err := h.store.Subscribe(ctx, req.Query)
	if err != nil {
		return h.toStatus(ctx, "watch", err)
	}

	for rs := range snapshots {
		if err := stream.Send(&rpc.Snapshot{Records: rs}); err != nil {
			return err
		}
	}

	return nil
}
