package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

const workflowService = "/k3.workflow.v1.WorkflowService/"

// WorkflowGRPCClient calls the workflow gRPC service.
type WorkflowGRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewWorkflowGRPCClient dials addr without transport security.
func NewWorkflowGRPCClient(addr, token string, opts ...grpc.DialOption) (*WorkflowGRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to workflow service: %w", err)
	}
	return &WorkflowGRPCClient{conn: conn, token: token}, nil
}

// Close closes the connection
func (c *WorkflowGRPCClient) Close() error {
	return c.conn.Close()
}

// GetTimeline fetches the timeline of a target as a JSON-shaped map.
func (c *WorkflowGRPCClient) GetTimeline(ctx context.Context, targetID string) (map[string]interface{}, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"targetId": targetID})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "GetTimeline", req)
}

// Verify submits a decision. Invalid decisions are rejected locally.
func (c *WorkflowGRPCClient) Verify(ctx context.Context, targetID string, decision workflow.Decision) (map[string]interface{}, error) {
	decision = decision.Normalized()
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"targetId":       targetID,
		"approvalStatus": string(decision.ApprovalStatus),
		"note":           decision.Note,
	})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "Verify", req)
}

func (c *WorkflowGRPCClient) invoke(ctx context.Context, method string, req *structpb.Struct) (map[string]interface{}, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, workflowService+method, req, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}
