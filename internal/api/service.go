package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "bookly.v1.Bookly"

// Full method names.
const (
	MethodRegister        = "/" + ServiceName + "/Register"
	MethodLogin           = "/" + ServiceName + "/Login"
	MethodLoginWithGoogle = "/" + ServiceName + "/LoginWithGoogle"
	MethodRefreshToken    = "/" + ServiceName + "/RefreshToken"
	MethodLogout          = "/" + ServiceName + "/Logout"
	MethodMe              = "/" + ServiceName + "/Me"
	MethodPing            = "/" + ServiceName + "/Ping"
	MethodGetDocument     = "/" + ServiceName + "/GetDocument"
	MethodAddDocument     = "/" + ServiceName + "/AddDocument"
	MethodUpdateDocument  = "/" + ServiceName + "/UpdateDocument"
	MethodCreateUpload    = "/" + ServiceName + "/CreateUpload"
	MethodSubscribe       = "/" + ServiceName + "/Subscribe"
)

type BooklyServer interface {
	Register(context.Context, *Credentials) (*AuthResponse, error)
	Login(context.Context, *Credentials) (*AuthResponse, error)
	LoginWithGoogle(context.Context, *GoogleLoginRequest) (*AuthResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*AuthResponse, error)
	Logout(context.Context, *RefreshTokenRequest) (*Empty, error)
	Me(context.Context, *Empty) (*User, error)
	Ping(context.Context, *Empty) (*PingResponse, error)
	GetDocument(context.Context, *GetDocumentRequest) (*DocumentResponse, error)
	AddDocument(context.Context, *AddDocumentRequest) (*AddDocumentResponse, error)
	UpdateDocument(context.Context, *UpdateDocumentRequest) (*Empty, error)
	CreateUpload(context.Context, *CreateUploadRequest) (*CreateUploadResponse, error)
	Subscribe(*SubscribeRequest, SubscribeServer) error
}

type SubscribeServer interface {
	Send(*SnapshotMessage) error
	grpc.ServerStream
}

type subscribeServer struct {
	grpc.ServerStream
}

func (s *subscribeServer) Send(m *SnapshotMessage) error {
	return s.ServerStream.SendMsg(m)
}

func unary[Req, Resp any](method string, call func(BooklyServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BooklyServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BooklyServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BooklyServer).Subscribe(in, &subscribeServer{stream})
}

// ServiceDesc describes bookly.v1.Bookly for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BooklyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(MethodRegister, BooklyServer.Register)},
		{MethodName: "Login", Handler: unary(MethodLogin, BooklyServer.Login)},
		{MethodName: "LoginWithGoogle", Handler: unary(MethodLoginWithGoogle, BooklyServer.LoginWithGoogle)},
		{MethodName: "RefreshToken", Handler: unary(MethodRefreshToken, BooklyServer.RefreshToken)},
		{MethodName: "Logout", Handler: unary(MethodLogout, BooklyServer.Logout)},
		{MethodName: "Me", Handler: unary(MethodMe, BooklyServer.Me)},
		{MethodName: "Ping", Handler: unary(MethodPing, BooklyServer.Ping)},
		{MethodName: "GetDocument", Handler: unary(MethodGetDocument, BooklyServer.GetDocument)},
		{MethodName: "AddDocument", Handler: unary(MethodAddDocument, BooklyServer.AddDocument)},
		{MethodName: "UpdateDocument", Handler: unary(MethodUpdateDocument, BooklyServer.UpdateDocument)},
		{MethodName: "CreateUpload", Handler: unary(MethodCreateUpload, BooklyServer.CreateUpload)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "bookly/v1/bookly.json",
}

func RegisterBooklyServer(s grpc.ServiceRegistrar, srv BooklyServer) {
	s.RegisterService(&ServiceDesc, srv)
}
