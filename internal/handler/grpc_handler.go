package handler

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-hse-inspections/internal/auth"
	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/service"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// WorkflowServiceName is the fully qualified gRPC service name.
const WorkflowServiceName = "k3.workflow.v1.WorkflowService"

// WorkflowServer is the gRPC surface of the workflow service. Requests and
// responses are google.protobuf.Struct payloads shaped like the HTTP JSON.
type WorkflowServer interface {
	GetTimeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterWorkflowServer registers srv on s.
func RegisterWorkflowServer(s grpc.ServiceRegistrar, srv WorkflowServer) {
	s.RegisterService(&workflowServiceDesc, srv)
}

var workflowServiceDesc = grpc.ServiceDesc{
	ServiceName: WorkflowServiceName,
	HandlerType: (*WorkflowServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTimeline", Handler: unaryHandler("GetTimeline", WorkflowServer.GetTimeline)},
		{MethodName: "Verify", Handler: unaryHandler("Verify", WorkflowServer.Verify)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "k3/workflow/v1/workflow.proto",
}

func unaryHandler(method string, call func(WorkflowServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(WorkflowServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + WorkflowServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(WorkflowServer), ctx, req.(*structpb.Struct))
		})
	}
}

// GRPCHandler implements WorkflowServer
type GRPCHandler struct {
	workflow *service.WorkflowService
	log      *logger.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(wf *service.WorkflowService, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{workflow: wf, log: log.WithComponent("grpc")}
}

// GetTimeline returns the derived timeline of a target.
func (h *GRPCHandler) GetTimeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	targetID := stringField(req, "targetId")
	h.log.Info().Str("target_id", targetID).Msg("gRPC GetTimeline called")

	tl, err := h.workflow.GetTimeline(ctx, targetID, actorFromContext(ctx))
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(toTimelineResponse(tl))
}

// Verify records a decision on the blocking stage.
func (h *GRPCHandler) Verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	targetID := stringField(req, "targetId")
	decision := workflow.Decision{
		ApprovalStatus: workflow.ApprovalStatus(stringField(req, "approvalStatus")),
		Note:           stringField(req, "note"),
	}
	h.log.Info().
		Str("target_id", targetID).
		Str("approval_status", string(decision.ApprovalStatus)).
		Msg("gRPC Verify called")

	tl, err := h.workflow.Verify(ctx, targetID, actorFromContext(ctx), decision)
	if err != nil {
		h.log.Warn().Err(err).Str("target_id", targetID).Msg("Verify rejected")
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(toTimelineResponse(tl))
}

// AuthInterceptor resolves the caller from the "authorization" metadata and
// stores the principal on the context.
func AuthInterceptor(v *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") ||
			strings.HasPrefix(info.FullMethod, "/grpc.reflection.") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		p, err := v.ParseToken(strings.TrimPrefix(values[0], "Bearer "))
		if err != nil {
			return nil, mapErrorToGRPC(err)
		}
		return handler(auth.WithPrincipal(ctx, p), req)
	}
}

func actorFromContext(ctx context.Context) service.Actor {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return service.Actor{}
	}
	return service.Actor{UserID: p.UserID, UserName: p.UserName, Role: p.Role}
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// toStruct converts a JSON-tagged value into a Struct via its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// mapErrorToGRPC maps application error codes to gRPC status codes
func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch errors.CodeOf(err) {
	case errors.ErrCodeNotFound:
		return status.Error(codes.NotFound, msg)
	case errors.ErrCodeInvalidInput:
		return status.Error(codes.InvalidArgument, msg)
	case errors.ErrCodeUnauthorized:
		return status.Error(codes.Unauthenticated, msg)
	case errors.ErrCodeForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case errors.ErrCodeConflict:
		return status.Error(codes.FailedPrecondition, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}
