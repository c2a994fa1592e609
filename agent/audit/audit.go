// Package audit persists every side-effecting tool invocation to Postgres.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN     string        `envconfig:"DSN"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

type invocationRow struct {
	bun.BaseModel `bun:"table:tool_invocations,alias:ti"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	Tool       string         `bun:"tool,notnull"`
	Target     string         `bun:"target,notnull"`
	RawPayload string         `bun:"raw_payload,notnull"`
	Extracted  map[string]any `bun:"extracted,type:jsonb"`
	Validated  map[string]any `bun:"validated,type:jsonb"`
	Outcome    string         `bun:"outcome,notnull"`
	Result     string         `bun:"result,notnull"`
	CreatedAt  time.Time      `bun:"created_at,notnull"`
}

// Log writes invocations with bun. It is safe for concurrent use.
type Log struct {
	db    *bun.DB
	now   func() time.Time
	newID func() uuid.UUID
}

var _ contractx.InvocationLog = (*Log)(nil)

func New(db *bun.DB) *Log {
	return &Log{db: db, now: time.Now, newID: uuid.New}
}

// Open connects to Postgres and creates the table when it is missing.
func Open(ctx context.Context, cfg Config) (*Log, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: audit dsn is required", contractx.ErrValidation)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Timeout > 0 {
		opts = append(opts, pgdriver.WithTimeout(cfg.Timeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))

	l := New(bun.NewDB(sqldb, pgdialect.New()))
	if err := l.EnsureSchema(ctx); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) EnsureSchema(ctx context.Context) error {
	if _, err := l.createTableQuery().Exec(ctx); err != nil {
		return fmt.Errorf("%w: create tool_invocations: %v", contractx.ErrCollaborator, err)
	}
	return nil
}

func (l *Log) Record(ctx context.Context, inv contractx.ToolInvocation) error {
	if _, err := l.insertQuery(inv).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert tool invocation: %v", contractx.ErrCollaborator, err)
	}
	return nil
}

// Recent returns the latest invocations, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]contractx.ToolInvocation, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []invocationRow
	if err := l.recentQuery(&rows, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: select tool invocations: %v", contractx.ErrCollaborator, err)
	}
	out := make([]contractx.ToolInvocation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.invocation())
	}
	return out, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) createTableQuery() *bun.CreateTableQuery {
	return l.db.NewCreateTable().Model((*invocationRow)(nil)).IfNotExists()
}

func (l *Log) insertQuery(inv contractx.ToolInvocation) *bun.InsertQuery {
	return l.db.NewInsert().Model(l.row(inv))
}

func (l *Log) recentQuery(rows *[]invocationRow, limit int) *bun.SelectQuery {
	return l.db.NewSelect().Model(rows).OrderExpr("created_at DESC").Limit(limit)
}

func (l *Log) row(inv contractx.ToolInvocation) *invocationRow {
	return &invocationRow{
		ID:         l.newID(),
		Tool:       inv.Tool,
		Target:     string(inv.Target),
		RawPayload: inv.RawPayload,
		Extracted:  inv.Extracted,
		Validated:  asMap(inv.Validated),
		Outcome:    string(inv.Outcome),
		Result:     inv.Result,
		CreatedAt:  l.now().UTC(),
	}
}

func (r invocationRow) invocation() contractx.ToolInvocation {
	inv := contractx.ToolInvocation{
		Tool:       r.Tool,
		Target:     contractx.ToolTarget(r.Target),
		RawPayload: r.RawPayload,
		Extracted:  r.Extracted,
		Outcome:    contractx.InvocationOutcome(r.Outcome),
		Result:     r.Result,
	}
	if r.Validated != nil {
		inv.Validated = r.Validated
	}
	return inv
}

// asMap flattens validated args into a JSON object for the jsonb column.
func asMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// NoopLog discards invocations when no audit database is configured.
type NoopLog struct{}

func (NoopLog) Record(context.Context, contractx.ToolInvocation) error {
	return nil
}
