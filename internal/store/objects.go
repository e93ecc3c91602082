package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/diffable/internal/ir"
)

// Record is one stored object.
type Record struct {
	Entity     string
	ID         string
	Attributes ir.Object
	Seq        int64 // change that last wrote the object
}

// SortKey orders a fetch by one attribute.
type SortKey struct {
	KeyPath    string
	Descending bool
}

// FetchRequest selects the objects of one entity in a defined order.
type FetchRequest struct {
	Entity  string
	OrderBy []SortKey
	Limit   int // 0 means no limit
}

var keyPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidKeyPath reports whether key can be used as a sort key.
func ValidKeyPath(key string) bool {
	return keyPathPattern.MatchString(key)
}

// Insert stores a new object. It fails with ErrExists when (entity, id) is
// taken.
func (s *Store) Insert(ctx context.Context, entity, id string, attrs ir.Object) (Change, error) {
	return s.write(ctx, ChangeInsert, entity, id, attrs)
}

// Update replaces the attributes of an existing object.
func (s *Store) Update(ctx context.Context, entity, id string, attrs ir.Object) (Change, error) {
	return s.write(ctx, ChangeUpdate, entity, id, attrs)
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, entity, id string) (Change, error) {
	return s.write(ctx, ChangeDelete, entity, id, nil)
}

// write applies one object change and its log entry atomically, then
// notifies observers.
func (s *Store) write(ctx context.Context, kind ChangeKind, entity, id string, attrs ir.Object) (Change, error) {
	var attrsJSON sql.NullString
	if kind != ChangeDelete {
		text, err := marshalAttributes(attrs)
		if err != nil {
			return Change{}, fmt.Errorf("%s %s/%s: %w", kind, entity, id, err)
		}
		attrsJSON = sql.NullString{String: text, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Change{}, fmt.Errorf("%s %s/%s: begin: %w", kind, entity, id, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM changes`).Scan(&seq); err != nil {
		return Change{}, fmt.Errorf("%s %s/%s: next seq: %w", kind, entity, id, err)
	}

	var res sql.Result
	switch kind {
	case ChangeInsert:
		res, err = tx.ExecContext(ctx, `
			INSERT INTO objects (entity, id, attributes, seq)
			VALUES (?, ?, ?, ?)
		`, entity, id, attrsJSON.String, seq)
		if isConstraint(err) {
			return Change{}, fmt.Errorf("insert %s/%s: %w", entity, id, ErrExists)
		}
	case ChangeUpdate:
		res, err = tx.ExecContext(ctx, `
			UPDATE objects SET attributes = ?, seq = ?
			WHERE entity = ? AND id = ?
		`, attrsJSON.String, seq, entity, id)
	case ChangeDelete:
		res, err = tx.ExecContext(ctx, `
			DELETE FROM objects WHERE entity = ? AND id = ?
		`, entity, id)
	}
	if err != nil {
		return Change{}, fmt.Errorf("%s %s/%s: %w", kind, entity, id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Change{}, fmt.Errorf("%s %s/%s: %w", kind, entity, id, err)
	} else if n == 0 {
		return Change{}, fmt.Errorf("%s %s/%s: %w", kind, entity, id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO changes (seq, entity, object_id, kind, attributes)
		VALUES (?, ?, ?, ?, ?)
	`, seq, entity, id, string(kind), attrsJSON); err != nil {
		return Change{}, fmt.Errorf("%s %s/%s: log change: %w", kind, entity, id, err)
	}

	if err := tx.Commit(); err != nil {
		return Change{}, fmt.Errorf("%s %s/%s: commit: %w", kind, entity, id, err)
	}

	ch := Change{Seq: seq, Entity: entity, ObjectID: id, Kind: kind}
	if kind != ChangeDelete {
		ch.Attributes = attrs.Clone()
	}
	s.notify(ctx, ch)
	return ch, nil
}

// Get returns one object.
func (s *Store) Get(ctx context.Context, entity, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity, id, attributes, seq
		FROM objects
		WHERE entity = ? AND id = ?
	`, entity, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s/%s: %w", entity, id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

// Fetch returns the objects of one entity ordered by req.OrderBy and then by
// id COLLATE BINARY. Returns an empty slice (not nil) when nothing matches.
func (s *Store) Fetch(ctx context.Context, req FetchRequest) ([]Record, error) {
	if len(req.OrderBy) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, ErrMissingSort)
	}

	var order strings.Builder
	args := []any{req.Entity}
	for _, key := range req.OrderBy {
		if !ValidKeyPath(key.KeyPath) {
			return nil, fmt.Errorf("fetch %s: invalid sort key %q", req.Entity, key.KeyPath)
		}
		order.WriteString("json_extract(attributes, ?)")
		if key.Descending {
			order.WriteString(" DESC, ")
		} else {
			order.WriteString(" ASC, ")
		}
		args = append(args, "$."+key.KeyPath)
	}
	order.WriteString("id COLLATE BINARY ASC")

	query := `
		SELECT entity, id, attributes, seq
		FROM objects
		WHERE entity = ?
		ORDER BY ` + order.String()
	if req.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, req.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: iterate: %w", req.Entity, err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var attrs string
	if err := row.Scan(&rec.Entity, &rec.ID, &attrs, &rec.Seq); err != nil {
		return Record{}, err
	}
	obj, err := unmarshalAttributes(attrs)
	if err != nil {
		return Record{}, err
	}
	rec.Attributes = obj
	return rec, nil
}

// marshalAttributes encodes attributes as a JSON object with sorted keys.
// Null values are kept.
func marshalAttributes(attrs ir.Object) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	data, err := attrs.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(data), nil
}

func unmarshalAttributes(text string) (ir.Object, error) {
	var obj ir.Object
	if err := obj.UnmarshalJSON([]byte(text)); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return obj, nil
}
