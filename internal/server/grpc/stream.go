package grpc

import (
	"context"

	"github.com/dmitrijs2005/bookly/internal/api"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type update struct {
	snap *docstore.Snapshot
	err  error
}

// Subscribe relays store snapshots to the stream until the client goes away
// or the subscription fails. A failure ends the stream with its status.
func (s *GRPCServer) Subscribe(req *api.SubscribeRequest, stream api.SubscribeServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	updates := make(chan update)
	fn := func(snap *docstore.Snapshot, err error) {
		select {
		case updates <- update{snap: snap, err: err}:
		case <-ctx.Done():
		}
	}

	var (
		unsub docstore.Unsubscribe
		err   error
	)
	switch {
	case req.Document != "" && req.Collection != "":
		return status.Error(codes.InvalidArgument, "Subscribe to a collection or a document, not both.")
	case req.Document != "":
		unsub, err = s.documents.SubscribeDocument(ctx, req.Document, fn)
	default:
		unsub, err = s.documents.Subscribe(ctx, req.Collection, req.Query, fn)
	}
	if err != nil {
		return toStatus(err)
	}
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if u.err != nil {
				s.logger.Warn(ctx, "subscription ended", "error", u.err)
				return toStatus(u.err)
			}
			if err := stream.Send(&api.SnapshotMessage{Snapshot: *u.snap}); err != nil {
				return err
			}
		}
	}
}
