package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/asgdb/internal/model"
	"github.com/alfredjeanlab/asgdb/internal/rpc"
)

// GRPCClient implements Client using the gRPC transport.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewGRPCClient connects to addr. Extra dial options are appended after the
// insecure transport credentials.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) call(ctx context.Context, method string, req rpc.Request) (*rpc.Reply, error) {
	in, err := rpc.ToStruct(req)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), in, out); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, status.Convert(err).Message())
		}
		return nil, err
	}
	var reply rpc.Reply
	if err := rpc.FromStruct(out, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	reply, err := c.call(ctx, rpc.MethodHealth, rpc.Request{})
	if err != nil {
		return "", err
	}
	return reply.Status, nil
}

// --- Keyed values ---

func (c *GRPCClient) ListNamespaces(ctx context.Context) ([]string, error) {
	reply, err := c.call(ctx, rpc.MethodListNamespaces, rpc.Request{})
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Names), nil
}

func (c *GRPCClient) ListIdentities(ctx context.Context, ns string) ([]string, error) {
	reply, err := c.call(ctx, rpc.MethodListIdentities, rpc.Request{Namespace: ns})
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Names), nil
}

func (c *GRPCClient) GetValues(ctx context.Context, ns, id string) ([]*model.KeyedRecord, error) {
	reply, err := c.call(ctx, rpc.MethodGetValues, rpc.Request{Namespace: ns, Identity: id})
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Records), nil
}

func (c *GRPCClient) GetValue(ctx context.Context, ns, id, key string) (*model.KeyedRecord, error) {
	reply, err := c.call(ctx, rpc.MethodGetValue, rpc.Request{Namespace: ns, Identity: id, Key: key})
	if err != nil {
		return nil, err
	}
	return reply.Record, nil
}

func (c *GRPCClient) PutValues(ctx context.Context, ns, id string, values map[string]any, replace bool) (int64, error) {
	recs, err := EncodeValues(ns, id, values)
	if err != nil {
		return 0, err
	}
	reply, err := c.call(ctx, rpc.MethodPutValues, rpc.Request{Namespace: ns, Identity: id, Records: recs, Replace: replace})
	if err != nil {
		return 0, err
	}
	return reply.Affected, nil
}

func (c *GRPCClient) DeleteValues(ctx context.Context, ns, id string) (int64, error) {
	reply, err := c.call(ctx, rpc.MethodDeleteValues, rpc.Request{Namespace: ns, Identity: id})
	if err != nil {
		return 0, err
	}
	return reply.Affected, nil
}

func (c *GRPCClient) DeleteValue(ctx context.Context, ns, id, key string) error {
	_, err := c.call(ctx, rpc.MethodDeleteValue, rpc.Request{Namespace: ns, Identity: id, Key: key})
	return err
}

// --- Objects ---

func (c *GRPCClient) ListObjects(ctx context.Context, ns string) ([]string, error) {
	reply, err := c.call(ctx, rpc.MethodListObjects, rpc.Request{Namespace: ns})
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Names), nil
}

func (c *GRPCClient) GetObject(ctx context.Context, ns, id string) (*model.ObjectRecord, error) {
	reply, err := c.call(ctx, rpc.MethodGetObject, rpc.Request{Namespace: ns, Identity: id})
	if err != nil {
		return nil, err
	}
	return reply.Object, nil
}

func (c *GRPCClient) PutObject(ctx context.Context, obj *model.ObjectRecord) (*model.ObjectRecord, error) {
	reply, err := c.call(ctx, rpc.MethodPutObject, rpc.Request{Object: obj})
	if err != nil {
		return nil, err
	}
	return reply.Object, nil
}

func (c *GRPCClient) DeleteObject(ctx context.Context, ns, id string) error {
	_, err := c.call(ctx, rpc.MethodDeleteObject, rpc.Request{Namespace: ns, Identity: id})
	return err
}

// --- Tags ---

func (c *GRPCClient) GetTags(ctx context.Context, ns, id string) (map[string]*string, error) {
	reply, err := c.call(ctx, rpc.MethodGetTags, rpc.Request{Namespace: ns, Identity: id})
	if err != nil {
		return nil, err
	}
	if reply.Tags == nil {
		return map[string]*string{}, nil
	}
	return reply.Tags, nil
}

func (c *GRPCClient) AddTag(ctx context.Context, ns, id, name string, value *string) error {
	_, err := c.call(ctx, rpc.MethodAddTag, rpc.Request{Namespace: ns, Identity: id, Name: name, Value: value})
	return err
}

func (c *GRPCClient) RemoveTag(ctx context.Context, ns, id, name string) error {
	if name == "" {
		return fmt.Errorf("tag name is required")
	}
	_, err := c.call(ctx, rpc.MethodRemoveTag, rpc.Request{Namespace: ns, Identity: id, Name: name})
	return err
}

func (c *GRPCClient) FindTagged(ctx context.Context, ns, name string, value *string) ([]string, error) {
	reply, err := c.call(ctx, rpc.MethodFindTagged, rpc.Request{Namespace: ns, Name: name, Value: value})
	if err != nil {
		return nil, err
	}
	return nonNil(reply.Names), nil
}
