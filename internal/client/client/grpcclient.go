package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/rpc"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// GRPCClient is a store.Store served by a remote store server.
type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *rpc.Client
	logger      logging.Logger
}

// NewGRPCClient dials endpointURL lazily; the first call establishes the
// connection.
func NewGRPCClient(endpointURL string, l logging.Logger) (*GRPCClient, error) {
	conn, err := grpc.NewClient(endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	c := NewGRPCClientFromConn(conn, l)
	c.endpointURL = endpointURL
	c.conn = conn
	return c, nil
}

// NewGRPCClientFromConn wraps an existing connection. Close does not close
// a connection it did not open.
func NewGRPCClientFromConn(cc grpc.ClientConnInterface, l logging.Logger) *GRPCClient {
	return &GRPCClient{
		client: rpc.NewClient(cc),
		logger: l.With("module", "grpc_client"),
	}
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil

}

func (s *GRPCClient) Get(ctx context.Context, ownerID, id string) (*models.Record, error) {
	resp, err := s.client.Get(ctx, &rpc.GetRequest{OwnerID: ownerID, ID: id})
	if err != nil {
		return nil, s.mapError(err)
	}
	if resp.Record == nil {
		return nil, common.ErrorNotFound
	}
	return resp.Record, nil
}

func (s *GRPCClient) List(ctx context.Context, q store.Query) ([]*models.Record, error) {
	resp, err := s.client.List(ctx, &rpc.ListRequest{Query: q})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Records, nil
}

func (s *GRPCClient) Commit(ctx context.Context, ownerID string, b *store.Batch) error {
	if b == nil {
		return fmt.Errorf("nil batch: %w", common.ErrorInvalidArgument)
	}

	_, err := s.client.Commit(ctx, &rpc.CommitRequest{OwnerID: ownerID, Puts: b.Puts, Deletes: b.Deletes})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

// Subscribe opens a Watch stream. The first snapshot is awaited before
// returning so a refused query fails here; later stream errors end the
// subscription and are logged.
func (s *GRPCClient) Subscribe(ctx context.Context, q store.Query) (<-chan []*models.Record, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := s.client.Watch(ctx, &rpc.WatchRequest{Query: q})
	if err != nil {
		cancel()
		return nil, s.mapError(err)
	}

	first, err := stream.Recv()
	if err != nil {
		cancel()
		return nil, s.mapError(err)
	}

	out := make(chan []*models.Record, 1)
	out <- first.Records

	go func() {
		defer cancel()
		defer close(out)

		for {
			snap, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.logger.Warn(ctx, "watch stream ended", "owner", q.OwnerID, "error", s.mapError(err))
				}
				return
			}

			select {
			case out <- snap.Records:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorInvalidArgument)
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
