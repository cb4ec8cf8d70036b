package fraud

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ocx/paygate/internal/core"
)

// GRPCClient is the gRPC transport variant of the fraud-engine client,
// for tenants whose fraud engine exposes a gRPC surface instead of
// HTTP/JSON. Grounded on the teacher's internal/escrow/jury_client.go
// connection-construction pattern (grpc.NewClient with insecure
// transport credentials for intra-cluster calls).
type GRPCClient struct {
	conn   *grpc.ClientConn
	method string
}

// NewGRPCClient dials addr and returns a client invoking method (default
// "/paygate.fraud.v1.FraudEngine/Assess") for each assessment.
func NewGRPCClient(addr, method string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("fraud: grpc dial %s: %w", addr, err)
	}
	if method == "" {
		method = "/paygate.fraud.v1.FraudEngine/Assess"
	}
	return &GRPCClient{conn: conn, method: method}, nil
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Assess marshals requestBody into a structpb.Struct and invokes the
// configured unary RPC, decoding the structpb.Struct response back into
// an EngineResponse.
func (c *GRPCClient) Assess(ctx context.Context, requestBody map[string]interface{}) (EngineResponse, error) {
	reqStruct, err := structpb.NewStruct(requestBody)
	if err != nil {
		return EngineResponse{}, fmt.Errorf("fraud: build grpc request: %w", err)
	}

	respStruct := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, c.method, reqStruct, respStruct); err != nil {
		return EngineResponse{}, fmt.Errorf("fraud: grpc call failed: %w", err)
	}

	fields := respStruct.GetFields()
	resp := EngineResponse{
		Decision:  core.FraudDecision(stringField(fields, "decision")),
		RiskLevel: core.RiskLevel(stringField(fields, "riskLevel")),
		Reason:    stringField(fields, "reason"),
	}
	if v, ok := fields["riskScore"]; ok {
		resp.RiskScore = v.GetNumberValue()
	}
	return resp, nil
}

func stringField(fields map[string]*structpb.Value, key string) string {
	if v, ok := fields[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
