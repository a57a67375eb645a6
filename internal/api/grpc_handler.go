package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NazarZnet/E-commerce/internal/filter"
	"github.com/NazarZnet/E-commerce/internal/service"
)

const filterServiceName = "storefront.v1.FilterService"

// FilterServiceServer is the server API for storefront.v1.FilterService.
// Messages use google.protobuf.Struct carrying the same JSON documents as the HTTP API.
type FilterServiceServer interface {
	GetFilters(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetFilters(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetFilters(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// FilterServiceDesc describes storefront.v1.FilterService for grpc.Server.RegisterService.
var FilterServiceDesc = grpc.ServiceDesc{
	ServiceName: filterServiceName,
	HandlerType: (*FilterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFilters", Handler: unaryHandler("GetFilters", newEmpty, FilterServiceServer.GetFilters)},
		{MethodName: "SetFilters", Handler: unaryHandler("SetFilters", newStruct, FilterServiceServer.SetFilters)},
		{MethodName: "ResetFilters", Handler: unaryHandler("ResetFilters", newEmpty, FilterServiceServer.ResetFilters)},
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", newStruct, FilterServiceServer.ListProducts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/filter_service.proto",
}

// RegisterFilterServiceServer registers srv with s.
func RegisterFilterServiceServer(s grpc.ServiceRegistrar, srv FilterServiceServer) {
	s.RegisterService(&FilterServiceDesc, srv)
}

func newEmpty() *emptypb.Empty   { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

func unaryHandler[Req any](
	method string,
	newReq func() Req,
	call func(FilterServiceServer, context.Context, Req) (*structpb.Struct, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + filterServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FilterServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FilterServiceServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FilterServiceClient is the client API for storefront.v1.FilterService.
type FilterServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFilterServiceClient(cc grpc.ClientConnInterface) *FilterServiceClient {
	return &FilterServiceClient{cc: cc}
}

func (c *FilterServiceClient) invoke(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+filterServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FilterServiceClient) GetFilters(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetFilters", &emptypb.Empty{}, opts...)
}

func (c *FilterServiceClient) SetFilters(ctx context.Context, patch *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SetFilters", patch, opts...)
}

func (c *FilterServiceClient) ResetFilters(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ResetFilters", &emptypb.Empty{}, opts...)
}

func (c *FilterServiceClient) ListProducts(ctx context.Context, query *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListProducts", query, opts...)
}

// GRPCHandler implements FilterServiceServer on top of the storefront.
type GRPCHandler struct {
	storefront Storefront
	validate   *validator.Validate
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(sf Storefront) *GRPCHandler {
	return &GRPCHandler{storefront: sf, validate: validator.New()}
}

// --- Helper: Error Mapping ---
func mapServiceErrorToGrpcStatus(err error, method string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, service.ErrCategoryNotFound), errors.Is(err, service.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPage), errors.Is(err, service.ErrInvalidOrdering):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		log.Error().Err(err).Str("method", method).Msg("gRPC request failed")
		return status.Errorf(codes.Internal, "Failed to process %s", method)
	}
}

// toStruct converts any JSON-serializable value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into dst using its JSON form.
func fromStruct(in *structpb.Struct, dst interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func (h *GRPCHandler) GetFilters(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(h.storefront.Filters())
}

func (h *GRPCHandler) SetFilters(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var patch filter.Patch
	if err := fromStruct(req, &patch); err != nil {
		return nil, err
	}
	if msg := validatePatch(h.validate, patch); msg != "" {
		return nil, status.Error(codes.InvalidArgument, msg)
	}

	state, err := h.storefront.UpdateFilters(ctx, patch)
	if err != nil {
		return nil, mapServiceErrorToGrpcStatus(err, "SetFilters")
	}
	log.Debug().Str("category", state.CategoryName()).Msg("filters updated over gRPC")
	return toStruct(state)
}

func (h *GRPCHandler) ResetFilters(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(h.storefront.ResetFilters())
}

// productListRequest mirrors the query parameters of GET /api/v1/products.
type productListRequest struct {
	Search   string `json:"search"`
	Featured *bool  `json:"featured"`
	Category string `json:"category"`
	Ordering string `json:"ordering"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

func (h *GRPCHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in productListRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.Page < 0 || in.PageSize < 0 {
		return nil, status.Error(codes.InvalidArgument, "page and page_size must not be negative")
	}

	page, err := h.storefront.ListProducts(ctx, service.ProductQuery{
		Search:       in.Search,
		Featured:     in.Featured,
		CategorySlug: in.Category,
		Ordering:     in.Ordering,
		Page:         in.Page,
		PageSize:     in.PageSize,
	})
	if err != nil {
		return nil, mapServiceErrorToGrpcStatus(err, "ListProducts")
	}
	return toStruct(page)
}
