package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
	"pharmasync/internal/domain/store"
)

const recordColumns = "id, payload, is_temporary, deleted_at, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func table(t entity.Type) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t.Table(), nil
}

func (o ops) Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error) {
	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	row := o.q.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM "+tbl+" WHERE id = ?", id)
	rec, err := scanRecord(row, t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", t, id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", t, id, err)
	}
	return rec, nil
}

func (o ops) GetAll(ctx context.Context, t entity.Type, filter entity.Filter) ([]entity.Record, error) {
	tbl, err := table(t)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + recordColumns + " FROM " + tbl
	if !filter.ShowDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	query += " ORDER BY created_at, id"

	rows, err := o.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}
	defer rows.Close()

	var records []entity.Record
	for rows.Next() {
		rec, err := scanRecord(rows, t)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t, err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (o ops) Put(ctx context.Context, t entity.Type, rec *entity.Record) error {
	tbl, err := table(t)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("put %s: empty id: %w", t, entity.ErrInvalidPayload)
	}

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", t, rec.ID, err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	rec.Type = t

	query := "INSERT INTO " + tbl + " (" + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			is_temporary = excluded.is_temporary,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at`

	_, err = o.q.ExecContext(ctx, query,
		rec.ID, string(payload), rec.Temporary, formatNullTime(rec.DeletedAt),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put %s %s: %w", t, rec.ID, err)
	}
	return nil
}

func (o ops) SoftDelete(ctx context.Context, t entity.Type, id string) error {
	tbl, err := table(t)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	res, err := o.q.ExecContext(ctx,
		"UPDATE "+tbl+" SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete %s %s: %w", t, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", t, id, entity.ErrNotFound)
	}
	return nil
}

func (o ops) Remove(ctx context.Context, t entity.Type, id string) error {
	tbl, err := table(t)
	if err != nil {
		return err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM "+tbl+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove %s %s: %w", t, id, err)
	}
	return nil
}

func (o ops) replaceID(ctx context.Context, t entity.Type, oldID string, rec *entity.Record) error {
	if err := o.Remove(ctx, t, oldID); err != nil {
		return err
	}
	return o.Put(ctx, t, rec)
}

func (o ops) bulkReplace(ctx context.Context, t entity.Type, records []entity.Record, preserve map[string]bool) (int, error) {
	tbl, err := table(t)
	if err != nil {
		return 0, err
	}

	rows, err := o.q.QueryContext(ctx, "SELECT id FROM "+tbl)
	if err != nil {
		return 0, fmt.Errorf("scan %s ids: %w", t, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan %s id: %w", t, err)
		}
		if !preserve[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if err := o.Remove(ctx, t, id); err != nil {
			return 0, err
		}
	}

	written := 0
	for i := range records {
		rec := records[i]
		if preserve[rec.ID] {
			continue
		}
		rec.Temporary = false
		rec.DeletedAt = nil
		if err := o.Put(ctx, t, &rec); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (o ops) Clear(ctx context.Context, t entity.Type) error {
	tbl, err := table(t)
	if err != nil {
		return err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM "+tbl); err != nil {
		return fmt.Errorf("clear %s: %w", t, err)
	}
	return nil
}

func (o ops) Count(ctx context.Context, t entity.Type) (entity.Counts, error) {
	tbl, err := table(t)
	if err != nil {
		return entity.Counts{}, err
	}

	query := `SELECT
			COUNT(*),
			COUNT(deleted_at),
			COALESCE(SUM(CASE WHEN id IN (
				SELECT entity_id FROM changes WHERE entity_type = ? AND status IN (?, ?, ?)
			) THEN 1 ELSE 0 END), 0)
		FROM ` + tbl

	var c entity.Counts
	err = o.q.QueryRowContext(ctx, query,
		string(t), string(change.StatusPending), string(change.StatusInFlight), string(change.StatusFailed),
	).Scan(&c.Total, &c.Deleted, &c.Unsynced)
	if err != nil {
		return entity.Counts{}, fmt.Errorf("count %s: %w", t, err)
	}
	return c, nil
}

func scanRecord(row scanner, t entity.Type) (*entity.Record, error) {
	var (
		rec                  entity.Record
		payload              string
		deletedAt            sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &payload, &rec.Temporary, &deletedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", rec.ID, err)
	}

	var err error
	if rec.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	rec.Type = t
	return &rec, nil
}

// ReplaceID переносит запись на серверный id в одной транзакции.
func (s *Storage) ReplaceID(ctx context.Context, t entity.Type, oldID string, rec *entity.Record) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		return tx.ReplaceID(ctx, t, oldID, rec)
	})
}

// BulkReplace заменяет коллекцию в одной транзакции.
func (s *Storage) BulkReplace(ctx context.Context, t entity.Type, records []entity.Record, preserve map[string]bool) (int, error) {
	var n int
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.BulkReplace(ctx, t, records, preserve)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bulk replace %s: %w", t, err)
	}
	return n, nil
}

func (tx *Tx) ReplaceID(ctx context.Context, t entity.Type, oldID string, rec *entity.Record) error {
	return tx.replaceID(ctx, t, oldID, rec)
}

func (tx *Tx) BulkReplace(ctx context.Context, t entity.Type, records []entity.Record, preserve map[string]bool) (int, error) {
	return tx.bulkReplace(ctx, t, records, preserve)
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
