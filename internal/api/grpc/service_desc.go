package grpc

import (
	"context"

	"battery-rental-backend/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	RentalService_Checkout_FullMethodName       = config.RentalServicePrefix + "Checkout"
	RentalService_ReturnBattery_FullMethodName  = config.RentalServicePrefix + "ReturnBattery"
	RentalService_SearchStations_FullMethodName = config.RentalServicePrefix + "SearchStations"
	RentalService_GetHistory_FullMethodName     = config.RentalServicePrefix + "GetHistory"
)

// RentalServiceServer is the server API for battery.rental.v1.RentalService.
type RentalServiceServer interface {
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	ReturnBattery(context.Context, *ReturnBatteryRequest) (*ReturnBatteryResponse, error)
	SearchStations(*SearchStationsRequest, grpc.ServerStreamingServer[StationAvailability]) error
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
}

// UnimplementedRentalServiceServer can be embedded to keep a server
// compiling as methods are added.
type UnimplementedRentalServiceServer struct{}

func (UnimplementedRentalServiceServer) Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Checkout not implemented")
}
func (UnimplementedRentalServiceServer) ReturnBattery(context.Context, *ReturnBatteryRequest) (*ReturnBatteryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReturnBattery not implemented")
}
func (UnimplementedRentalServiceServer) SearchStations(*SearchStationsRequest, grpc.ServerStreamingServer[StationAvailability]) error {
	return status.Error(codes.Unimplemented, "method SearchStations not implemented")
}
func (UnimplementedRentalServiceServer) GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHistory not implemented")
}

func RegisterRentalServiceServer(s grpc.ServiceRegistrar, srv RentalServiceServer) {
	s.RegisterService(&RentalService_ServiceDesc, srv)
}

func _RentalService_Checkout_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckoutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RentalServiceServer).Checkout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RentalService_Checkout_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RentalServiceServer).Checkout(ctx, req.(*CheckoutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RentalService_ReturnBattery_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReturnBatteryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RentalServiceServer).ReturnBattery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RentalService_ReturnBattery_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RentalServiceServer).ReturnBattery(ctx, req.(*ReturnBatteryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RentalService_SearchStations_Handler(srv any, stream grpc.ServerStream) error {
	m := new(SearchStationsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RentalServiceServer).SearchStations(m, &grpc.GenericServerStream[SearchStationsRequest, StationAvailability]{ServerStream: stream})
}

func _RentalService_GetHistory_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetHistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RentalServiceServer).GetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RentalService_GetHistory_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RentalServiceServer).GetHistory(ctx, req.(*GetHistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RentalService_ServiceDesc is the grpc.ServiceDesc for RentalService.
var RentalService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "battery.rental.v1.RentalService",
	HandlerType: (*RentalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Checkout", Handler: _RentalService_Checkout_Handler},
		{MethodName: "ReturnBattery", Handler: _RentalService_ReturnBattery_Handler},
		{MethodName: "GetHistory", Handler: _RentalService_GetHistory_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SearchStations", Handler: _RentalService_SearchStations_Handler, ServerStreams: true},
	},
	Metadata: "battery/rental/v1/rental.proto",
}

// RentalServiceClient is the client API for battery.rental.v1.RentalService.
// Every call is sent with the JSON codec.
type RentalServiceClient interface {
	Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error)
	ReturnBattery(ctx context.Context, in *ReturnBatteryRequest, opts ...grpc.CallOption) (*ReturnBatteryResponse, error)
	SearchStations(ctx context.Context, in *SearchStationsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StationAvailability], error)
	GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error)
}

type rentalServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRentalServiceClient(cc grpc.ClientConnInterface) RentalServiceClient {
	return &rentalServiceClient{cc}
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *rentalServiceClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error) {
	out := new(CheckoutResponse)
	if err := c.cc.Invoke(ctx, RentalService_Checkout_FullMethodName, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rentalServiceClient) ReturnBattery(ctx context.Context, in *ReturnBatteryRequest, opts ...grpc.CallOption) (*ReturnBatteryResponse, error) {
	out := new(ReturnBatteryResponse)
	if err := c.cc.Invoke(ctx, RentalService_ReturnBattery_FullMethodName, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rentalServiceClient) SearchStations(ctx context.Context, in *SearchStationsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[StationAvailability], error) {
	stream, err := c.cc.NewStream(ctx, &RentalService_ServiceDesc.Streams[0], RentalService_SearchStations_FullMethodName, withJSON(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SearchStationsRequest, StationAvailability]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *rentalServiceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	out := new(GetHistoryResponse)
	if err := c.cc.Invoke(ctx, RentalService_GetHistory_FullMethodName, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
