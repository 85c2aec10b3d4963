package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/asgdb/internal/engine"
	"github.com/alfredjeanlab/asgdb/internal/idgen"
	"github.com/alfredjeanlab/asgdb/internal/rpc"
)

// NewGRPCServer creates a gRPC server with the standard interceptors and
// registers the storage service and reflection.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(s.log),
			LoggingInterceptor(s.log),
			AuthInterceptor(authToken),
		),
	)
	srv.RegisterService(&serviceDesc, s)
	reflection.Register(srv)
	return srv
}

type rpcHandler func(s *Server, ctx context.Context, req *rpc.Request) (*rpc.Reply, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		method(rpc.MethodHealth, (*Server).rpcHealth),
		method(rpc.MethodListNamespaces, (*Server).rpcListNamespaces),
		method(rpc.MethodListIdentities, (*Server).rpcListIdentities),
		method(rpc.MethodGetValues, (*Server).rpcGetValues),
		method(rpc.MethodGetValue, (*Server).rpcGetValue),
		method(rpc.MethodPutValues, (*Server).rpcPutValues),
		method(rpc.MethodDeleteValues, (*Server).rpcDeleteValues),
		method(rpc.MethodDeleteValue, (*Server).rpcDeleteValue),
		method(rpc.MethodListObjects, (*Server).rpcListObjects),
		method(rpc.MethodGetObject, (*Server).rpcGetObject),
		method(rpc.MethodPutObject, (*Server).rpcPutObject),
		method(rpc.MethodDeleteObject, (*Server).rpcDeleteObject),
		method(rpc.MethodGetTags, (*Server).rpcGetTags),
		method(rpc.MethodAddTag, (*Server).rpcAddTag),
		method(rpc.MethodRemoveTag, (*Server).rpcRemoveTag),
		method(rpc.MethodFindTagged, (*Server).rpcFindTagged),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "asgdb/v1/storage.proto",
}

// method adapts a handler to the Struct-in, Struct-out wire shape.
func method(name string, h rpcHandler) grpc.MethodDesc {
	call := func(s *Server, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		var req rpc.Request
		if err := rpc.FromStruct(in, &req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		reply, err := h(s, ctx, &req)
		if err != nil {
			return nil, err
		}
		out, err := rpc.ToStruct(reply)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rpc.FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func resultReply(res engine.Result, rowRequired bool) (*rpc.Reply, error) {
	if res.Err != nil {
		return nil, status.Error(grpcCode(res.Err), res.Err.Error())
	}
	if rowRequired && !res.OK {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &rpc.Reply{Affected: res.Affected}, nil
}

func require(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return status.Errorf(codes.InvalidArgument, "%s is required", fields[i])
		}
	}
	return nil
}

func (s *Server) rpcHealth(context.Context, *rpc.Request) (*rpc.Reply, error) {
	return &rpc.Reply{Status: "ok"}, nil
}

func (s *Server) rpcListNamespaces(ctx context.Context, _ *rpc.Request) (*rpc.Reply, error) {
	return &rpc.Reply{Names: s.engine.ListNamespaces(ctx)}, nil
}

func (s *Server) rpcListIdentities(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace); err != nil {
		return nil, err
	}
	return &rpc.Reply{Names: s.engine.ListIdentities(ctx, req.Namespace)}, nil
}

func (s *Server) rpcGetValues(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity); err != nil {
		return nil, err
	}
	recs, ok := s.engine.ListRecords(ctx, req.Namespace, req.Identity)
	if !ok {
		return nil, status.Error(codes.Internal, "reading values failed")
	}
	return &rpc.Reply{Records: recs}, nil
}

func (s *Server) rpcGetValue(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity, "key", req.Key); err != nil {
		return nil, err
	}
	rec, ok := s.engine.GetRecord(ctx, req.Namespace, req.Identity, req.Key)
	if !ok {
		return nil, status.Error(codes.NotFound, "value not found")
	}
	return &rpc.Reply{Record: rec}, nil
}

func (s *Server) rpcPutValues(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity); err != nil {
		return nil, err
	}
	return resultReply(s.engine.PutRecords(ctx, req.Namespace, req.Identity, req.Records, req.Replace), false)
}

func (s *Server) rpcDeleteValues(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity); err != nil {
		return nil, err
	}
	return resultReply(s.engine.Delete(ctx, req.Namespace, req.Identity), true)
}

func (s *Server) rpcDeleteValue(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity, "key", req.Key); err != nil {
		return nil, err
	}
	return resultReply(s.engine.DeleteKey(ctx, req.Namespace, req.Identity, req.Key), true)
}

func (s *Server) rpcListObjects(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace); err != nil {
		return nil, err
	}
	return &rpc.Reply{Names: s.engine.ListObjectIDs(ctx, req.Namespace)}, nil
}

func (s *Server) rpcGetObject(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity); err != nil {
		return nil, err
	}
	obj, ok := s.engine.GetObjectRecord(ctx, req.Namespace, req.Identity)
	if !ok {
		return nil, status.Error(codes.NotFound, "object not found")
	}
	return &rpc.Reply{Object: obj}, nil
}

// rpcPutObject stores req.Object, generating an id when it has none.
func (s *Server) rpcPutObject(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	obj := req.Object
	if obj == nil {
		return nil, status.Error(codes.InvalidArgument, "object is required")
	}
	if obj.ID == "" {
		id, err := idgen.ObjectID()
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		obj.ID = id
	}
	if res := s.engine.PutObjectRecord(ctx, obj); res.Err != nil {
		return nil, status.Error(grpcCode(res.Err), res.Err.Error())
	}
	return &rpc.Reply{Object: obj, Affected: 1}, nil
}

func (s *Server) rpcDeleteObject(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity); err != nil {
		return nil, err
	}
	return resultReply(s.engine.DeleteObject(ctx, req.Namespace, req.Identity), true)
}

func (s *Server) rpcGetTags(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "identity", req.Identity); err != nil {
		return nil, err
	}
	return &rpc.Reply{Tags: s.engine.GetTags(ctx, req.Namespace, req.Identity)}, nil
}

func (s *Server) rpcAddTag(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	return resultReply(s.engine.AddTag(ctx, req.Namespace, req.Identity, req.Name, req.Value), false)
}

func (s *Server) rpcRemoveTag(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if req.Name == "" {
		return resultReply(s.engine.ClearTags(ctx, req.Namespace, req.Identity), false)
	}
	return resultReply(s.engine.RemoveTag(ctx, req.Namespace, req.Identity, req.Name), true)
}

// rpcFindTagged matches on value when one is given, otherwise on the name alone.
func (s *Server) rpcFindTagged(ctx context.Context, req *rpc.Request) (*rpc.Reply, error) {
	if err := require("namespace", req.Namespace, "name", req.Name); err != nil {
		return nil, err
	}
	if req.Value != nil {
		return &rpc.Reply{Names: s.engine.FindByTag(ctx, req.Namespace, req.Name, *req.Value)}, nil
	}
	return &rpc.Reply{Names: s.engine.FindByTagName(ctx, req.Namespace, req.Name)}, nil
}
