package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
)

const changeColumns = "seq, entity_type, entity_id, action, payload, created_at, retry_count, status, last_error, last_attempt"

func statusArgs(statuses []change.Status) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

// AppendChange вставляет c и проставляет ей порядковый номер.
func (o ops) AppendChange(ctx context.Context, c *change.Change) error {
	if err := c.EntityType.Validate(); err != nil {
		return err
	}
	if err := c.Action.Validate(); err != nil {
		return err
	}
	if c.Status == "" {
		c.Status = change.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	payload, err := encodePayload(c.Payload)
	if err != nil {
		return err
	}

	res, err := o.q.ExecContext(ctx, `
		INSERT INTO changes (entity_type, entity_id, action, payload, created_at, retry_count, status, last_error, last_attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.EntityType), c.EntityID, string(c.Action), payload, formatTime(c.CreatedAt),
		c.RetryCount, string(c.Status), c.LastError, formatNullTime(c.LastAttempt))
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	c.Seq = seq
	return nil
}

func (o ops) Changes(ctx context.Context, statuses ...change.Status) ([]change.Change, error) {
	query := "SELECT " + changeColumns + " FROM changes"
	if len(statuses) > 0 {
		query += " WHERE status IN (" + placeholders(len(statuses)) + ")"
	}
	query += " ORDER BY seq"

	rows, err := o.q.QueryContext(ctx, query, statusArgs(statuses)...)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []change.Change
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, *c)
	}
	return changes, rows.Err()
}

func (o ops) GetChange(ctx context.Context, seq int64) (*change.Change, error) {
	row := o.q.QueryRowContext(ctx, "SELECT "+changeColumns+" FROM changes WHERE seq = ?", seq)
	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("change %d: %w", seq, change.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get change %d: %w", seq, err)
	}
	return c, nil
}

// UpdateChange сохраняет изменяемые поля c. Тип, действие и время
// создания после добавления не меняются.
func (o ops) UpdateChange(ctx context.Context, c *change.Change) error {
	payload, err := encodePayload(c.Payload)
	if err != nil {
		return err
	}

	res, err := o.q.ExecContext(ctx, `
		UPDATE changes
		SET entity_id = ?, payload = ?, retry_count = ?, status = ?, last_error = ?, last_attempt = ?
		WHERE seq = ?`,
		c.EntityID, payload, c.RetryCount, string(c.Status), c.LastError, formatNullTime(c.LastAttempt), c.Seq)
	if err != nil {
		return fmt.Errorf("update change %d: %w", c.Seq, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("change %d: %w", c.Seq, change.ErrNotFound)
	}
	return nil
}

func (o ops) DeleteChange(ctx context.Context, seq int64) error {
	if _, err := o.q.ExecContext(ctx, "DELETE FROM changes WHERE seq = ?", seq); err != nil {
		return fmt.Errorf("delete change %d: %w", seq, err)
	}
	return nil
}

func (o ops) CountChanges(ctx context.Context, statuses ...change.Status) (int, error) {
	query := "SELECT COUNT(*) FROM changes"
	if len(statuses) > 0 {
		query += " WHERE status IN (" + placeholders(len(statuses)) + ")"
	}

	var n int
	if err := o.q.QueryRowContext(ctx, query, statusArgs(statuses)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count changes: %w", err)
	}
	return n, nil
}

func (o ops) ResetInFlight(ctx context.Context) (int, error) {
	res, err := o.q.ExecContext(ctx, "UPDATE changes SET status = ? WHERE status = ?",
		string(change.StatusPending), string(change.StatusInFlight))
	if err != nil {
		return 0, fmt.Errorf("reset in-flight changes: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (o ops) UnresolvedIDs(ctx context.Context, t entity.Type) (map[string]bool, error) {
	args := append([]any{string(t)}, statusArgs(change.Unresolved)...)
	rows, err := o.q.QueryContext(ctx,
		"SELECT DISTINCT entity_id FROM changes WHERE entity_type = ? AND status IN ("+placeholders(len(change.Unresolved))+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("unresolved %s ids: %w", t, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func encodePayload(p entity.Payload) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode change payload: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func scanChange(row scanner) (*change.Change, error) {
	var (
		c           change.Change
		typ, action string
		status      string
		payload     sql.NullString
		createdAt   string
		lastAttempt sql.NullString
	)
	err := row.Scan(&c.Seq, &typ, &c.EntityID, &action, &payload, &createdAt,
		&c.RetryCount, &status, &c.LastError, &lastAttempt)
	if err != nil {
		return nil, err
	}

	c.EntityType = entity.Type(typ)
	c.Action = change.Action(action)
	c.Status = change.Status(status)

	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &c.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of change %d: %w", c.Seq, err)
		}
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.LastAttempt, err = parseNullTime(lastAttempt); err != nil {
		return nil, err
	}
	return &c, nil
}
