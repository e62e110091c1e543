package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Depth fetches up to levels levels per side; 0 means all.
func (c *Client) Depth(ctx context.Context, levels int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := &structpb.Struct{}
	if levels > 0 {
		in.Fields = map[string]*structpb.Value{levelsField: structpb.NewNumberValue(float64(levels))}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DepthMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StatusMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
