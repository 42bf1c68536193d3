// Package grpc exposes Bookly over gRPC: account and document calls, the
// snapshot stream, plus interceptors for auth, rate limiting and panics.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/bookly/internal/api"
	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/server/models"
	"github.com/dmitrijs2005/bookly/internal/server/services"
	"github.com/grpc-ecosystem/go-grpc-middleware/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// UserService is the account logic the handlers call.
type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, *models.User, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*services.TokenPair, *models.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*models.User, error)
}

type UploadService interface {
	CreateUpload(ctx context.Context, userID, name, contentType string) (blob.Ticket, error)
}

type GRPCServer struct {
	address   string
	users     UserService
	documents docstore.Store
	uploads   UploadService
	limiter   ratelimit.Limiter
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

var _ api.BooklyServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, docs docstore.Store, up UploadService, secretKey string, limiter ratelimit.Limiter) *GRPCServer {
	if limiter == nil {
		limiter = Unlimited()
	}
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		documents: docs,
		uploads:   up,
		limiter:   limiter,
		jwtSecret: []byte(secretKey),
		health:    health.NewServer(),
	}
}

// NewServer builds the grpc.Server with every interceptor and service
// registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			s.recoveryUnaryInterceptor(),
			ratelimit.UnaryServerInterceptor(s.limiter),
			s.loggingInterceptor,
			s.accessTokenInterceptor,
		),
		grpc.ChainStreamInterceptor(
			s.recoveryStreamInterceptor(),
			ratelimit.StreamServerInterceptor(s.limiter),
			s.accessTokenStreamInterceptor,
		),
	)

	api.RegisterBooklyServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}
