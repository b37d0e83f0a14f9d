package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/internal/common"
)

const ServiceName = "taxdocs.v1.TaxDocs"

const requestIDHeader = "x-request-id"

// TaxDocsServer is the RPC surface. Every method takes and returns a
// google.protobuf.Struct so the daemon needs no generated stubs.
type TaxDocsServer interface {
	Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Reprocess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateMetadata(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	MarkNeedsReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Stats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type call func(srv TaxDocsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(TaxDocsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(TaxDocsServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TaxDocsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Upload", TaxDocsServer.Upload),
		unary("IngestDirectory", TaxDocsServer.IngestDirectory),
		unary("Reprocess", TaxDocsServer.Reprocess),
		unary("GetDocument", TaxDocsServer.GetDocument),
		unary("ListDocuments", TaxDocsServer.ListDocuments),
		unary("UpdateMetadata", TaxDocsServer.UpdateMetadata),
		unary("MarkNeedsReview", TaxDocsServer.MarkNeedsReview),
		unary("DeleteDocument", TaxDocsServer.DeleteDocument),
		unary("Export", TaxDocsServer.Export),
		unary("Stats", TaxDocsServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taxdocs/v1/taxdocs.proto",
}

func RegisterTaxDocsServer(s grpc.ServiceRegistrar, srv TaxDocsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls a remote TaxDocsServer. It satisfies TaxDocsServer itself so
// callers can switch between the in-process service and a daemon.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	if id := common.RequestIDFromContext(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, requestIDHeader, id)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "Upload", in)
}

func (c *Client) IngestDirectory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "IngestDirectory", in)
}

func (c *Client) Reprocess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "Reprocess", in)
}

func (c *Client) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetDocument", in)
}

func (c *Client) ListDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListDocuments", in)
}

func (c *Client) UpdateMetadata(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "UpdateMetadata", in)
}

func (c *Client) MarkNeedsReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "MarkNeedsReview", in)
}

func (c *Client) DeleteDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "DeleteDocument", in)
}

func (c *Client) Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "Export", in)
}

func (c *Client) Stats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.invoke(ctx, "Stats", in)
}
