package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/bookly/internal/api"
	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CallTimeout bounds every unary call.
const CallTimeout = 12 * time.Second

// booklyAPI is the generated-style client surface GRPCClient drives.
type booklyAPI interface {
	Register(ctx context.Context, in *api.Credentials, opts ...grpc.CallOption) (*api.AuthResponse, error)
	Login(ctx context.Context, in *api.Credentials, opts ...grpc.CallOption) (*api.AuthResponse, error)
	LoginWithGoogle(ctx context.Context, in *api.GoogleLoginRequest, opts ...grpc.CallOption) (*api.AuthResponse, error)
	RefreshToken(ctx context.Context, in *api.RefreshTokenRequest, opts ...grpc.CallOption) (*api.AuthResponse, error)
	Logout(ctx context.Context, in *api.RefreshTokenRequest, opts ...grpc.CallOption) (*api.Empty, error)
	Me(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.User, error)
	Ping(ctx context.Context, in *api.Empty, opts ...grpc.CallOption) (*api.PingResponse, error)
	GetDocument(ctx context.Context, in *api.GetDocumentRequest, opts ...grpc.CallOption) (*api.DocumentResponse, error)
	AddDocument(ctx context.Context, in *api.AddDocumentRequest, opts ...grpc.CallOption) (*api.AddDocumentResponse, error)
	UpdateDocument(ctx context.Context, in *api.UpdateDocumentRequest, opts ...grpc.CallOption) (*api.Empty, error)
	CreateUpload(ctx context.Context, in *api.CreateUploadRequest, opts ...grpc.CallOption) (*api.CreateUploadResponse, error)
	Subscribe(ctx context.Context, in *api.SubscribeRequest, opts ...grpc.CallOption) (api.SubscribeClient, error)
}

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
	client      booklyAPI

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onTokens     func(access, refresh string)
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.Tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err == nil || !isTokenExpired(err) || refresh == "" || method == api.MethodRefreshToken {
		return err
	}

	resp, rerr := s.client.RefreshToken(ctx, &api.RefreshTokenRequest{RefreshToken: refresh})
	if rerr != nil {
		return rerr
	}
	s.SetTokens(resp.AccessToken, resp.RefreshToken)

	// Tokens rotated, retrying with the fresh access token.
	return invoker(withAccessToken(ctx, resp.AccessToken), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	access, _ := s.Tokens()
	return streamer(withAccessToken(ctx, access), desc, cc, method, opts...)
}

// NewBooklyClientService connects to the server at endpointURL. Extra dial
// options are appended to the defaults.
func NewBooklyClientService(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, dialOpts: opts}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewBooklyClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Tokens returns the current access and refresh tokens.
func (s *GRPCClient) Tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// SetTokens replaces the session tokens and reports them to the OnTokens
// callback.
func (s *GRPCClient) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	fn := s.onTokens
	s.mu.Unlock()

	if fn != nil {
		fn(access, refresh)
	}
}

// OnTokens registers fn to be called whenever the tokens change, including
// transparent refreshes.
func (s *GRPCClient) OnTokens(fn func(access, refresh string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokens = fn
}

func toUser(u *api.User) *models.User {
	if u == nil {
		return nil
	}
	return &models.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}

func (s *GRPCClient) authenticated(resp *api.AuthResponse) *models.User {
	s.SetTokens(resp.AccessToken, resp.RefreshToken)
	return toUser(resp.User)
}

func (s *GRPCClient) Register(ctx context.Context, email, password string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.Register(ctx, &api.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}
	return s.authenticated(resp), nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.Login(ctx, &api.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}
	return s.authenticated(resp), nil
}

func (s *GRPCClient) LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.LoginWithGoogle(ctx, &api.GoogleLoginRequest{IDToken: idToken})
	if err != nil {
		return nil, s.mapError(err)
	}
	return s.authenticated(resp), nil
}

// Logout revokes the refresh token on the server. Local tokens are dropped
// even when the call fails.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refresh := s.Tokens()
	defer s.SetTokens("", "")

	if refresh == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	if _, err := s.client.Logout(ctx, &api.RefreshTokenRequest{RefreshToken: refresh}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Me(ctx context.Context) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.Me(ctx, &api.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return toUser(resp), nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.Empty{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Get(ctx context.Context, docPath string) (*docstore.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.GetDocument(ctx, &api.GetDocumentRequest{Path: docPath})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Document, nil
}

func (s *GRPCClient) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.AddDocument(ctx, &api.AddDocumentRequest{Collection: collection, Fields: fields})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.ID, nil
}

func (s *GRPCClient) Update(ctx context.Context, docPath string, patch docstore.Patch) error {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	if _, err := s.client.UpdateDocument(ctx, &api.UpdateDocumentRequest{Path: docPath, Patch: patch}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) CreateUpload(ctx context.Context, name, contentType string) (blob.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := s.client.CreateUpload(ctx, &api.CreateUploadRequest{Name: name, ContentType: contentType})
	if err != nil {
		return blob.Ticket{}, s.mapError(err)
	}
	return resp.Ticket, nil
}

func (s *GRPCClient) Subscribe(ctx context.Context, collection string, q docstore.Query, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	if !docstore.IsCollectionPath(collection) {
		return nil, common.Validation("Invalid collection path.")
	}
	return s.subscribe(ctx, &api.SubscribeRequest{Collection: collection, Query: q}, fn)
}

func (s *GRPCClient) SubscribeDocument(ctx context.Context, docPath string, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	if !docstore.IsDocumentPath(docPath) {
		return nil, common.Validation("Invalid document path.")
	}
	return s.subscribe(ctx, &api.SubscribeRequest{Document: docPath}, fn)
}

// subscribe pumps the snapshot stream into a mailbox. The stream stays open
// until unsubscribe, ctx cancellation or a terminal status from the server.
func (s *GRPCClient) subscribe(ctx context.Context, req *api.SubscribeRequest, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := s.client.Subscribe(ctx, req)
	if err != nil {
		cancel()
		return nil, s.mapError(err)
	}

	box := docstore.NewMailbox(fn)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			box.Stop()
			cancel()
		})
	}

	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					unsubscribe()
					return
				}
				if errors.Is(err, io.EOF) {
					err = common.Wrap(common.ErrRemoteRead, "Subscription closed by server.", err)
				}
				box.Fail(s.mapError(err))
				cancel()
				return
			}
			snap := msg.Snapshot
			box.Post(&snap)
		}
	}()

	return unsubscribe, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	var ue *common.Error
	if errors.As(err, &ue) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return common.Validation(st.Message())
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.AlreadyExists:
		return common.ErrorAlreadyExists
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
