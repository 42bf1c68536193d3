package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/bookly/internal/api"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	bookmodels "github.com/dmitrijs2005/bookly/internal/models"
	"github.com/dmitrijs2005/bookly/internal/server/auth"
	"github.com/dmitrijs2005/bookly/internal/server/models"
	"github.com/dmitrijs2005/bookly/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toAPIUser(u *models.User) *api.User {
	if u == nil {
		return nil
	}
	return &api.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}

func authResponse(pair *services.TokenPair, u *models.User) *api.AuthResponse {
	return &api.AuthResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: toAPIUser(u)}
}

// Register creates the account and signs it in.
func (s *GRPCServer) Register(ctx context.Context, req *api.Credentials) (*api.AuthResponse, error) {
	s.logger.Info(ctx, "Registration request")

	if _, err := s.users.Register(ctx, req.Email, req.Password); err != nil {
		s.logger.Warn(ctx, "registration failed", "error", err)
		return nil, toStatus(err)
	}

	pair, u, err := s.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "user", u.ID)
	return authResponse(pair, u), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.Credentials) (*api.AuthResponse, error) {
	pair, u, err := s.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return authResponse(pair, u), nil
}

func (s *GRPCServer) LoginWithGoogle(ctx context.Context, req *api.GoogleLoginRequest) (*api.AuthResponse, error) {
	if req.IDToken == "" {
		return nil, status.Error(codes.InvalidArgument, "ID token is required.")
	}
	pair, u, err := s.users.LoginWithGoogle(ctx, req.IDToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return authResponse(pair, u), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.AuthResponse, error) {
	pair, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.AuthResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.RefreshTokenRequest) (*api.Empty, error) {
	if err := s.users.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *api.Empty) (*api.User, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	u, err := s.users.Me(ctx, claims.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAPIUser(u), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *api.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) GetDocument(ctx context.Context, req *api.GetDocumentRequest) (*api.DocumentResponse, error) {
	doc, err := s.documents.Get(ctx, req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.DocumentResponse{Document: *doc}, nil
}

func (s *GRPCServer) AddDocument(ctx context.Context, req *api.AddDocumentRequest) (*api.AddDocumentResponse, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	id, err := s.documents.Add(ctx, req.Collection, stampAuthor(req.Collection, req.Fields, claims))
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "document added", "collection", req.Collection, "id", id, "user", claims.UserID)
	return &api.AddDocumentResponse{ID: id}, nil
}

// stampAuthor overwrites the author fields of new books and comments with
// the caller's identity.
func stampAuthor(collection string, fields docstore.Fields, claims *auth.Claims) docstore.Fields {
	out := make(docstore.Fields, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	switch {
	case collection == docstore.BooksCollection:
		out[bookmodels.FieldPublisherUID] = claims.UserID
		out[bookmodels.FieldPublisherEmail] = claims.Email
	case strings.HasSuffix(collection, "/"+docstore.CommentsCollection):
		out[bookmodels.FieldUser] = claims.Email
	}
	return out
}

func (s *GRPCServer) UpdateDocument(ctx context.Context, req *api.UpdateDocumentRequest) (*api.Empty, error) {
	if err := s.documents.Update(ctx, req.Path, req.Patch); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) CreateUpload(ctx context.Context, req *api.CreateUploadRequest) (*api.CreateUploadResponse, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	t, err := s.uploads.CreateUpload(ctx, claims.UserID, req.Name, req.ContentType)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.CreateUploadResponse{Ticket: t}, nil
}
