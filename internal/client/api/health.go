package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC service name whose status is checked.
const HealthService = "gophnotes.Ledger"

// HealthChecker asks the server's gRPC health endpoint whether the ledger is
// serving.
type HealthChecker struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

func NewHealthChecker(addr string) (*HealthChecker, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &HealthChecker{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

// Online reports whether the server answered SERVING within ctx.
func (h *HealthChecker) Online(ctx context.Context) bool {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (h *HealthChecker) Close() error {
	return h.conn.Close()
}
