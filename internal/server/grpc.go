package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "invoicepipeline.v1.InvoiceService"

const (
	methodProcessInvoice   = "/" + ServiceName + "/ProcessInvoice"
	methodGetInvoiceStatus = "/" + ServiceName + "/GetInvoiceStatus"
)

// InvoiceServiceServer is the gRPC contract. Requests and responses are google.protobuf.Struct
// values with the same field names as the JSON API.
//
// ProcessInvoice accepts either "path" (readable by the server) or "filename" with
// "content_base64", plus optional "vendor_name" and "async". GetInvoiceStatus takes "id".
type InvoiceServiceServer interface {
	ProcessInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInvoiceStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var InvoiceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessInvoice", Handler: unaryHandler(methodProcessInvoice, InvoiceServiceServer.ProcessInvoice)},
		{MethodName: "GetInvoiceStatus", Handler: unaryHandler(methodGetInvoiceStatus, InvoiceServiceServer.GetInvoiceStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoicepipeline/v1/invoice.proto",
}

type structMethod func(InvoiceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InvoiceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(InvoiceServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// RegisterGRPC registers the invoice service and the standard health service, marking both
// as serving. The health server is returned so callers can flip it on shutdown.
func RegisterGRPC(s *grpc.Server, svc *InvoiceService, logger *slog.Logger) *health.Server {
	s.RegisterService(&InvoiceServiceDesc, NewGRPCServer(svc, logger))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// GRPCServer adapts InvoiceService to InvoiceServiceServer.
type GRPCServer struct {
	svc    *InvoiceService
	logger *slog.Logger
}

func NewGRPCServer(svc *InvoiceService, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCServer{svc: svc, logger: logger}
}

func (s *GRPCServer) ProcessInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	vendor := strings.TrimSpace(fields["vendor_name"].GetStringValue())

	path := strings.TrimSpace(fields["path"].GetStringValue())
	if path == "" {
		name := fields["filename"].GetStringValue()
		encoded := fields["content_base64"].GetStringValue()
		if name == "" || encoded == "" {
			return nil, common.InvalidArgumentError("path or filename with content_base64 is required")
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("content_base64: %v", err)
		}
		saved, err := s.svc.SaveUpload(name, bytes.NewReader(data))
		if err != nil {
			s.logger.Warn("grpc.process.upload_rejected", "filename", name, "error", err)
			return nil, common.ToGRPCError(err)
		}
		path = saved
	}

	if fields["async"].GetBoolValue() {
		id, err := s.svc.Submit(ctx, path, vendor)
		if err != nil {
			s.logger.Error("grpc.submit.failed", "path", path, "error", err)
			return nil, common.ToGRPCError(err)
		}
		return structpb.NewStruct(map[string]any{"id": id, "status": constants.JobStatusQueued})
	}

	res := s.svc.Process(ctx, path, vendor)
	s.logger.Info("grpc.process.done", "id", res.ID, "status", res.Status)
	return toStruct(res)
}

func (s *GRPCServer) GetInvoiceStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetFields()["id"].GetStringValue())
	if id == "" {
		return nil, common.InvalidArgumentError("id is required")
	}
	st, err := s.svc.Status(ctx, id)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return toStruct(st)
}

// toStruct converts through JSON so the Struct carries the same field names as the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// InvoiceServiceClient calls InvoiceService over a client connection.
type InvoiceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInvoiceServiceClient(cc grpc.ClientConnInterface) *InvoiceServiceClient {
	return &InvoiceServiceClient{cc: cc}
}

func (c *InvoiceServiceClient) ProcessInvoice(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodProcessInvoice, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InvoiceServiceClient) GetInvoiceStatus(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetInvoiceStatus, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
