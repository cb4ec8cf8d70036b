package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
)

// SpannerStore is an alternate FraudAssessment/FlowAuditLog persistence
// backend for tenants requiring strong global consistency instead of
// Supabase's Postgres-over-REST model, grounded on the teacher's
// SpannerWallet (client construction, ReadWriteTransaction/mutation
// idiom) repurposed from reputation-ledger writes to append-only
// assessment and audit rows.
type SpannerStore struct {
	client *spanner.Client
	logger *log.Logger
}

// NewSpannerStore dials a Spanner database at
// projects/<project>/instances/<instance>/databases/<db>.
func NewSpannerStore(project, instance, db string) (*SpannerStore, error) {
	ctx := context.Background()
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, db)

	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("spanner store: connect: %w", err)
	}

	return &SpannerStore{
		client: client,
		logger: log.New(os.Stdout, "[SPANNER-STORE] ", log.LstdFlags),
	}, nil
}

// Close releases the underlying Spanner client.
func (s *SpannerStore) Close() {
	s.client.Close()
}

// InsertFraudAssessment appends an immutable assessment row.
func (s *SpannerStore) InsertFraudAssessment(ctx context.Context, row *FraudAssessmentRow) error {
	mutation := spanner.Insert("FraudAssessments",
		[]string{"AssessmentID", "MessageID", "TenantID", "Source", "Type", "Status", "Decision", "RiskLevel", "RiskScore", "Reason", "ErrorMessage", "CreatedAt"},
		[]interface{}{row.AssessmentID, row.MessageID, row.TenantID, row.Source, row.Type, row.Status, row.Decision, row.RiskLevel, row.RiskScore, row.Reason, row.ErrorMessage, spanner.CommitTimestamp},
	)
	_, err := s.client.Apply(ctx, []*spanner.Mutation{mutation})
	if err != nil {
		return fmt.Errorf("spanner store: insert fraud assessment: %w", err)
	}
	return nil
}

// GetFraudAssessment reads a single assessment row by ID, using a 15s
// stale read since this is an operator/audit lookup, not a hot path.
func (s *SpannerStore) GetFraudAssessment(ctx context.Context, tenantID, assessmentID string) (*FraudAssessmentRow, error) {
	roTx := s.client.ReadOnlyTransaction().WithTimestampBound(spanner.MaxStaleness(15_000_000_000))
	defer roTx.Close()

	row, err := roTx.ReadRow(ctx, "FraudAssessments", spanner.Key{tenantID, assessmentID},
		[]string{"AssessmentID", "MessageID", "TenantID", "Source", "Type", "Status", "Decision", "RiskLevel", "RiskScore", "Reason", "ErrorMessage"})
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("spanner store: get fraud assessment: %w", err)
	}

	var out FraudAssessmentRow
	if err := row.Columns(&out.AssessmentID, &out.MessageID, &out.TenantID, &out.Source, &out.Type, &out.Status, &out.Decision, &out.RiskLevel, &out.RiskScore, &out.Reason, &out.ErrorMessage); err != nil {
		return nil, fmt.Errorf("spanner store: scan fraud assessment: %w", err)
	}
	return &out, nil
}

// InsertFlowAuditLog appends one transition row.
func (s *SpannerStore) InsertFlowAuditLog(ctx context.Context, row *FlowAuditLogRow) error {
	metadata := "{}"
	if len(row.Metadata) > 0 {
		metadata = string(row.Metadata)
	}
	mutation := spanner.Insert("FlowAuditLog",
		[]string{"CorrelationID", "TenantID", "Stage", "Status", "Metadata", "CreatedAt"},
		[]interface{}{row.CorrelationID, row.TenantID, row.Stage, row.Status, metadata, spanner.CommitTimestamp},
	)
	_, err := s.client.Apply(ctx, []*spanner.Mutation{mutation})
	if err != nil {
		return fmt.Errorf("spanner store: insert flow audit log: %w", err)
	}
	return nil
}

// GetFlowAuditLog reads every transition row for one correlationId,
// oldest first.
func (s *SpannerStore) GetFlowAuditLog(ctx context.Context, tenantID, correlationID string) ([]FlowAuditLogRow, error) {
	stmt := spanner.Statement{
		SQL: `SELECT CorrelationID, TenantID, Stage, Status, Metadata, CreatedAt
		      FROM FlowAuditLog
		      WHERE TenantID = @tenantID AND CorrelationID = @correlationID
		      ORDER BY CreatedAt ASC`,
		Params: map[string]interface{}{"tenantID": tenantID, "correlationID": correlationID},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var rows []FlowAuditLogRow
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("spanner store: query flow audit log: %w", err)
		}
		var out FlowAuditLogRow
		var metadata string
		var createdAt spanner.NullTime
		if err := row.Columns(&out.CorrelationID, &out.TenantID, &out.Stage, &out.Status, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("spanner store: scan flow audit log: %w", err)
		}
		out.Metadata = json.RawMessage(metadata)
		if createdAt.Valid {
			out.CreatedAt = createdAt.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
		rows = append(rows, out)
	}
	return rows, nil
}
