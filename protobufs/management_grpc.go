package protobufs

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

const (
	WorkerManagement_RegisterModel_FullMethodName   = "/management.WorkerManagement/RegisterModel"
	WorkerManagement_UnregisterModel_FullMethodName = "/management.WorkerManagement/UnregisterModel"
	WorkerManagement_Heartbeat_FullMethodName       = "/management.WorkerManagement/Heartbeat"
	WorkerManagement_ListModels_FullMethodName      = "/management.WorkerManagement/ListModels"
)

// WorkerManagementClient is the client API for WorkerManagement.
type WorkerManagementClient interface {
	// Announce a (model, version) capability served at worker_address.
	RegisterModel(ctx context.Context, in *RegisterModelRequest, opts ...grpc.CallOption) (*RegisterModelResponse, error)
	// Withdraw a previously registered capability.
	UnregisterModel(ctx context.Context, in *UnregisterModelRequest, opts ...grpc.CallOption) (*UnregisterModelResponse, error)
	// Liveness ping. Accepted unconditionally; reserved for TTL-based pruning.
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	// Snapshot the registered model routes, optionally for one worker.
	ListModels(ctx context.Context, in *ListModelsRequest, opts ...grpc.CallOption) (*ListModelsResponse, error)
}

type workerManagementClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerManagementClient(cc grpc.ClientConnInterface) WorkerManagementClient {
	return &workerManagementClient{cc}
}

func (c *workerManagementClient) RegisterModel(ctx context.Context, in *RegisterModelRequest, opts ...grpc.CallOption) (*RegisterModelResponse, error) {
	out := new(RegisterModelResponse)
	err := c.cc.Invoke(ctx, WorkerManagement_RegisterModel_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerManagementClient) UnregisterModel(ctx context.Context, in *UnregisterModelRequest, opts ...grpc.CallOption) (*UnregisterModelResponse, error) {
	out := new(UnregisterModelResponse)
	err := c.cc.Invoke(ctx, WorkerManagement_UnregisterModel_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerManagementClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	err := c.cc.Invoke(ctx, WorkerManagement_Heartbeat_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerManagementClient) ListModels(ctx context.Context, in *ListModelsRequest, opts ...grpc.CallOption) (*ListModelsResponse, error) {
	out := new(ListModelsResponse)
	err := c.cc.Invoke(ctx, WorkerManagement_ListModels_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WorkerManagementServer is the server API for WorkerManagement.
// All implementations must embed UnimplementedWorkerManagementServer for
// forward compatibility.
type WorkerManagementServer interface {
	RegisterModel(context.Context, *RegisterModelRequest) (*RegisterModelResponse, error)
	UnregisterModel(context.Context, *UnregisterModelRequest) (*UnregisterModelResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	ListModels(context.Context, *ListModelsRequest) (*ListModelsResponse, error)
	mustEmbedUnimplementedWorkerManagementServer()
}

// UnimplementedWorkerManagementServer must be embedded to have forward
// compatible implementations.
type UnimplementedWorkerManagementServer struct{}

func (UnimplementedWorkerManagementServer) RegisterModel(context.Context, *RegisterModelRequest) (*RegisterModelResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RegisterModel not implemented")
}
func (UnimplementedWorkerManagementServer) UnregisterModel(context.Context, *UnregisterModelRequest) (*UnregisterModelResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UnregisterModel not implemented")
}
func (UnimplementedWorkerManagementServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedWorkerManagementServer) ListModels(context.Context, *ListModelsRequest) (*ListModelsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListModels not implemented")
}
func (UnimplementedWorkerManagementServer) mustEmbedUnimplementedWorkerManagementServer() {}

// UnsafeWorkerManagementServer may be embedded to opt out of forward
// compatibility.
type UnsafeWorkerManagementServer interface {
	mustEmbedUnimplementedWorkerManagementServer()
}

func RegisterWorkerManagementServer(s grpc.ServiceRegistrar, srv WorkerManagementServer) {
	s.RegisterService(&WorkerManagement_ServiceDesc, srv)
}

func _WorkerManagement_RegisterModel_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterModelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerManagementServer).RegisterModel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WorkerManagement_RegisterModel_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerManagementServer).RegisterModel(ctx, req.(*RegisterModelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorkerManagement_UnregisterModel_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UnregisterModelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerManagementServer).UnregisterModel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WorkerManagement_UnregisterModel_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerManagementServer).UnregisterModel(ctx, req.(*UnregisterModelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorkerManagement_Heartbeat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerManagementServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WorkerManagement_Heartbeat_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerManagementServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _WorkerManagement_ListModels_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListModelsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerManagementServer).ListModels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WorkerManagement_ListModels_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerManagementServer).ListModels(ctx, req.(*ListModelsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// WorkerManagement_ServiceDesc is the grpc.ServiceDesc for WorkerManagement.
// It is only intended for use with grpc.RegisterService.
var WorkerManagement_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "management.WorkerManagement",
	HandlerType: (*WorkerManagementServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RegisterModel",
			Handler:    _WorkerManagement_RegisterModel_Handler,
		},
		{
			MethodName: "UnregisterModel",
			Handler:    _WorkerManagement_UnregisterModel_Handler,
		},
		{
			MethodName: "Heartbeat",
			Handler:    _WorkerManagement_Heartbeat_Handler,
		},
		{
			MethodName: "ListModels",
			Handler:    _WorkerManagement_ListModels_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/worker_management.proto",
}
