package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/diffable/internal/ir"
)

// ChangeKind is what happened to an object.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is one entry of the change log. Attributes is nil for deletes.
type Change struct {
	Seq        int64
	Entity     string
	ObjectID   string
	Kind       ChangeKind
	Attributes ir.Object
}

// Handler observes committed changes.
type Handler func(ctx context.Context, ch Change)

type observer struct {
	handler Handler
}

// Observe registers h for every committed change. Handlers run on the
// writing goroutine after the commit, in registration order, and may call
// back into the store. The returned function unregisters h.
func (s *Store) Observe(h Handler) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs := &observer{handler: h}
	s.observers = append(s.observers, obs)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.observers = slices.DeleteFunc(s.observers, func(o *observer) bool { return o == obs })
	}
}

func (s *Store) notify(ctx context.Context, ch Change) {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, obs := range observers {
		obs.handler(ctx, ch)
	}
}

// Changes returns the log entries after since, ordered by seq.
func (s *Store) Changes(ctx context.Context, since int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, entity, object_id, kind, attributes
		FROM changes
		WHERE seq > ?
		ORDER BY seq ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var ch Change
		var kind string
		var attrs sql.NullString
		if err := rows.Scan(&ch.Seq, &ch.Entity, &ch.ObjectID, &kind, &attrs); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		ch.Kind = ChangeKind(kind)
		if attrs.Valid {
			obj, err := unmarshalAttributes(attrs.String)
			if err != nil {
				return nil, fmt.Errorf("change %d: %w", ch.Seq, err)
			}
			ch.Attributes = obj
		}
		changes = append(changes, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

// LastSeq returns the seq of the newest change, 0 for an empty store.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
