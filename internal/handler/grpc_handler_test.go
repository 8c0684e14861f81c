package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/pesio-ai/be-hse-inspections/internal/auth"
	"github.com/pesio-ai/be-hse-inspections/internal/client"
	"github.com/pesio-ai/be-hse-inspections/internal/errors"
	"github.com/pesio-ai/be-hse-inspections/internal/logger"
	"github.com/pesio-ai/be-hse-inspections/internal/service"
	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

func startGRPC(t *testing.T) (*service.TargetService, func(token string) *client.WorkflowGRPCClient) {
	t.Helper()
	ts, ws := newTestServices()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(AuthInterceptor(auth.NewVerifier(testSecret))))
	RegisterWorkflowServer(srv, NewGRPCHandler(ws, logger.Nop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	dial := func(token string) *client.WorkflowGRPCClient {
		c, err := client.NewWorkflowGRPCClient("passthrough:///bufnet", token,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}))
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c
	}
	return ts, dial
}

func TestGRPCTimelineAndVerify(t *testing.T) {
	ts, dial := startGRPC(t)
	ctx := context.Background()

	target, err := ts.ReportTarget(ctx, &service.ReportTargetRequest{Kind: "inspection", Title: "Monthly crane check", ReportedBy: officer.UserID})
	require.NoError(t, err)

	token, err := auth.IssueToken(testSecret, officer, "", time.Hour)
	require.NoError(t, err)
	c := dial(token)

	tl, err := c.GetTimeline(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Detection", tl["currentStage"])
	assert.Len(t, tl["entries"], 4)

	res, err := c.Verify(ctx, target.ID, workflow.Decision{ApprovalStatus: workflow.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, "Drafting", res["currentStage"])

	_, err = c.Verify(ctx, target.ID, workflow.Decision{ApprovalStatus: workflow.StatusApproved})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPCRequiresToken(t *testing.T) {
	_, dial := startGRPC(t)
	_, err := dial("").GetTimeline(context.Background(), "6f1c9b8e-0d2a-4c55-9a0f-8b8f1f3e2d11")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestMapErrorToGRPC(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{errors.NotFound("target", "x"), codes.NotFound},
		{errors.InvalidInput("id", "bad"), codes.InvalidArgument},
		{errors.New(errors.ErrCodeUnauthorized, "no"), codes.Unauthenticated},
		{errors.New(errors.ErrCodeForbidden, "no"), codes.PermissionDenied},
		{errors.New(errors.ErrCodeConflict, "done"), codes.FailedPrecondition},
		{assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(mapErrorToGRPC(tt.err)), tt.err.Error())
	}
	assert.NoError(t, mapErrorToGRPC(nil))
}
