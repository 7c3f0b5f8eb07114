package protobufs

import (
	proto "github.com/golang/protobuf/proto"
)

type RegisterModelRequest struct {
	ModelName     string `protobuf:"bytes,1,opt,name=model_name,json=modelName,proto3" json:"model_name,omitempty"`
	ModelVersion  string `protobuf:"bytes,2,opt,name=model_version,json=modelVersion,proto3" json:"model_version,omitempty"`
	WorkerAddress string `protobuf:"bytes,3,opt,name=worker_address,json=workerAddress,proto3" json:"worker_address,omitempty"`
	WorkerId      string `protobuf:"bytes,4,opt,name=worker_id,json=workerId,proto3" json:"worker_id,omitempty"`
}

func (m *RegisterModelRequest) Reset()         { *m = RegisterModelRequest{} }
func (m *RegisterModelRequest) String() string { return proto.CompactTextString(m) }
func (*RegisterModelRequest) ProtoMessage()    {}

func (m *RegisterModelRequest) GetModelName() string {
	if m != nil {
		return m.ModelName
	}
	return ""
}

func (m *RegisterModelRequest) GetModelVersion() string {
	if m != nil {
		return m.ModelVersion
	}
	return ""
}

func (m *RegisterModelRequest) GetWorkerAddress() string {
	if m != nil {
		return m.WorkerAddress
	}
	return ""
}

func (m *RegisterModelRequest) GetWorkerId() string {
	if m != nil {
		return m.WorkerId
	}
	return ""
}

type RegisterModelResponse struct {
	Success bool   `protobuf:"varint,1,opt,name=success,proto3" json:"success,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *RegisterModelResponse) Reset()         { *m = RegisterModelResponse{} }
func (m *RegisterModelResponse) String() string { return proto.CompactTextString(m) }
func (*RegisterModelResponse) ProtoMessage()    {}

func (m *RegisterModelResponse) GetSuccess() bool {
	if m != nil {
		return m.Success
	}
	return false
}

func (m *RegisterModelResponse) GetMessage() string {
	if m != nil {
		return m.Message
	}
	return ""
}

type UnregisterModelRequest struct {
	ModelName    string `protobuf:"bytes,1,opt,name=model_name,json=modelName,proto3" json:"model_name,omitempty"`
	ModelVersion string `protobuf:"bytes,2,opt,name=model_version,json=modelVersion,proto3" json:"model_version,omitempty"`
	WorkerId     string `protobuf:"bytes,3,opt,name=worker_id,json=workerId,proto3" json:"worker_id,omitempty"`
}

func (m *UnregisterModelRequest) Reset()         { *m = UnregisterModelRequest{} }
func (m *UnregisterModelRequest) String() string { return proto.CompactTextString(m) }
func (*UnregisterModelRequest) ProtoMessage()    {}

func (m *UnregisterModelRequest) GetModelName() string {
	if m != nil {
		return m.ModelName
	}
	return ""
}

func (m *UnregisterModelRequest) GetModelVersion() string {
	if m != nil {
		return m.ModelVersion
	}
	return ""
}

func (m *UnregisterModelRequest) GetWorkerId() string {
	if m != nil {
		return m.WorkerId
	}
	return ""
}

type UnregisterModelResponse struct {
	Success bool   `protobuf:"varint,1,opt,name=success,proto3" json:"success,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *UnregisterModelResponse) Reset()         { *m = UnregisterModelResponse{} }
func (m *UnregisterModelResponse) String() string { return proto.CompactTextString(m) }
func (*UnregisterModelResponse) ProtoMessage()    {}

func (m *UnregisterModelResponse) GetSuccess() bool {
	if m != nil {
		return m.Success
	}
	return false
}

func (m *UnregisterModelResponse) GetMessage() string {
	if m != nil {
		return m.Message
	}
	return ""
}

type HeartbeatRequest struct {
	WorkerId   string   `protobuf:"bytes,1,opt,name=worker_id,json=workerId,proto3" json:"worker_id,omitempty"`
	ModelNames []string `protobuf:"bytes,2,rep,name=model_names,json=modelNames,proto3" json:"model_names,omitempty"`
}

func (m *HeartbeatRequest) Reset()         { *m = HeartbeatRequest{} }
func (m *HeartbeatRequest) String() string { return proto.CompactTextString(m) }
func (*HeartbeatRequest) ProtoMessage()    {}

func (m *HeartbeatRequest) GetWorkerId() string {
	if m != nil {
		return m.WorkerId
	}
	return ""
}

func (m *HeartbeatRequest) GetModelNames() []string {
	if m != nil {
		return m.ModelNames
	}
	return nil
}

type HeartbeatResponse struct {
	Healthy bool `protobuf:"varint,1,opt,name=healthy,proto3" json:"healthy,omitempty"`
}

func (m *HeartbeatResponse) Reset()         { *m = HeartbeatResponse{} }
func (m *HeartbeatResponse) String() string { return proto.CompactTextString(m) }
func (*HeartbeatResponse) ProtoMessage()    {}

func (m *HeartbeatResponse) GetHealthy() bool {
	if m != nil {
		return m.Healthy
	}
	return false
}

type ListModelsRequest struct {
	WorkerId string `protobuf:"bytes,1,opt,name=worker_id,json=workerId,proto3" json:"worker_id,omitempty"`
}

func (m *ListModelsRequest) Reset()         { *m = ListModelsRequest{} }
func (m *ListModelsRequest) String() string { return proto.CompactTextString(m) }
func (*ListModelsRequest) ProtoMessage()    {}

func (m *ListModelsRequest) GetWorkerId() string {
	if m != nil {
		return m.WorkerId
	}
	return ""
}

type ModelRoute struct {
	ModelName     string `protobuf:"bytes,1,opt,name=model_name,json=modelName,proto3" json:"model_name,omitempty"`
	ModelVersion  string `protobuf:"bytes,2,opt,name=model_version,json=modelVersion,proto3" json:"model_version,omitempty"`
	WorkerAddress string `protobuf:"bytes,3,opt,name=worker_address,json=workerAddress,proto3" json:"worker_address,omitempty"`
	WorkerId      string `protobuf:"bytes,4,opt,name=worker_id,json=workerId,proto3" json:"worker_id,omitempty"`
}

func (m *ModelRoute) Reset()         { *m = ModelRoute{} }
func (m *ModelRoute) String() string { return proto.CompactTextString(m) }
func (*ModelRoute) ProtoMessage()    {}

func (m *ModelRoute) GetModelName() string {
	if m != nil {
		return m.ModelName
	}
	return ""
}

func (m *ModelRoute) GetModelVersion() string {
	if m != nil {
		return m.ModelVersion
	}
	return ""
}

func (m *ModelRoute) GetWorkerAddress() string {
	if m != nil {
		return m.WorkerAddress
	}
	return ""
}

func (m *ModelRoute) GetWorkerId() string {
	if m != nil {
		return m.WorkerId
	}
	return ""
}

type ListModelsResponse struct {
	Models []*ModelRoute `protobuf:"bytes,1,rep,name=models,proto3" json:"models,omitempty"`
}

func (m *ListModelsResponse) Reset()         { *m = ListModelsResponse{} }
func (m *ListModelsResponse) String() string { return proto.CompactTextString(m) }
func (*ListModelsResponse) ProtoMessage()    {}

func (m *ListModelsResponse) GetModels() []*ModelRoute {
	if m != nil {
		return m.Models
	}
	return nil
}

func init() {
	proto.RegisterType((*RegisterModelRequest)(nil), "management.RegisterModelRequest")
	proto.RegisterType((*RegisterModelResponse)(nil), "management.RegisterModelResponse")
	proto.RegisterType((*UnregisterModelRequest)(nil), "management.UnregisterModelRequest")
	proto.RegisterType((*UnregisterModelResponse)(nil), "management.UnregisterModelResponse")
	proto.RegisterType((*HeartbeatRequest)(nil), "management.HeartbeatRequest")
	proto.RegisterType((*HeartbeatResponse)(nil), "management.HeartbeatResponse")
	proto.RegisterType((*ListModelsRequest)(nil), "management.ListModelsRequest")
	proto.RegisterType((*ModelRoute)(nil), "management.ModelRoute")
	proto.RegisterType((*ListModelsResponse)(nil), "management.ListModelsResponse")
}
