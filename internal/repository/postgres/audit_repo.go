package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xela07ax/spaceai-governor/internal/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// WriteRecords пакетная вставка журнала решений одним INSERT.
func (r *AuditRepo) WriteRecords(ctx context.Context, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_records
	const numFields = 13
	vals := make([]interface{}, 0, len(records)*numFields)
	for _, e := range records {
		meta, err := jsonOrNil(e.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode audit metadata: %w", err)
		}
		vals = append(vals,
			e.ID, e.OrganizationID, nullString(e.TaskID), nullString(e.AgentID),
			e.Category, e.Action, string(e.Decision), e.DecidedBy,
			e.TrustLevelRequired, e.TrustLevelCurrent, e.Rationale, meta, e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO audit_records (id, organization_id, task_id, agent_id, category, action, decision, decided_by, trust_level_required, trust_level_current, rationale, metadata, created_at) VALUES %s",
		placeholders(len(records), numFields),
	)
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: insert audit records: %w", err)
	}
	return nil
}

// WriteEvents пакетная вставка событий исполнения (стоимость, инструменты, ошибки).
func (r *AuditRepo) WriteEvents(ctx context.Context, events []audit.ExecutionEvent) error {
	if len(events) == 0 {
		return nil
	}

	const numFields = 19
	vals := make([]interface{}, 0, len(events)*numFields)
	for _, e := range events {
		input, err := jsonOrNil(e.ToolInput)
		if err != nil {
			return fmt.Errorf("postgres: encode tool input: %w", err)
		}
		meta, err := jsonOrNil(e.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode event metadata: %w", err)
		}
		var success sql.NullBool
		if e.Success != nil {
			success = sql.NullBool{Bool: *e.Success, Valid: true}
		}
		var step sql.NullInt64
		if e.StepIndex != nil {
			step = sql.NullInt64{Int64: int64(*e.StepIndex), Valid: true}
		}
		vals = append(vals,
			e.ID, string(e.EventType), e.OrganizationID, nullString(e.Provider), nullString(e.Model),
			e.InputTokens, e.OutputTokens, e.CostCents, nullString(e.ToolName), input,
			nullString(e.ToolOutput), success, nullString(e.AgentID), nullString(e.TaskID), step,
			nullString(e.ErrorMessage), nullString(e.ErrorCode), meta, e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO execution_events (id, event_type, organization_id, provider, model, input_tokens, output_tokens, cost_cents, tool_name, tool_input, tool_output, success, agent_id, task_id, step_index, error_message, error_code, metadata, created_at) VALUES %s",
		placeholders(len(events), numFields),
	)
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: insert execution events: %w", err)
	}
	return nil
}

// placeholders строит "($1, $2), ($3, $4)" для многострочного INSERT.
func placeholders(rows, cols int) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*cols+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

func jsonOrNil(v map[string]interface{}) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
