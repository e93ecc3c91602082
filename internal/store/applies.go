package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/diffable/internal/diff"
	"github.com/roach88/diffable/internal/snapshot"
)

// ApplyEntry is one completed coordinator apply.
type ApplyEntry struct {
	Seq          int64
	ID           string
	Snapshot     snapshot.Snapshot
	Changeset    []byte // canonical JSON
	Fingerprint  string
	ViewAttached bool
	Animated     bool
	Settled      bool
}

// NewApplyEntry encodes a changeset for the log.
func NewApplyEntry(seq int64, id string, snap snapshot.Snapshot, cs diff.Changeset, viewAttached, animated, settled bool) (ApplyEntry, error) {
	canonical, err := cs.MarshalCanonical()
	if err != nil {
		return ApplyEntry{}, fmt.Errorf("apply %s: %w", id, err)
	}
	fp, err := cs.Fingerprint()
	if err != nil {
		return ApplyEntry{}, fmt.Errorf("apply %s: %w", id, err)
	}
	return ApplyEntry{
		Seq:          seq,
		ID:           id,
		Snapshot:     snap,
		Changeset:    canonical,
		Fingerprint:  fp,
		ViewAttached: viewAttached,
		Animated:     animated,
		Settled:      settled,
	}, nil
}

// WriteApply appends an entry to the apply log. Writing the same apply ID
// twice is a no-op.
func (s *Store) WriteApply(ctx context.Context, e ApplyEntry) error {
	snapJSON, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("write apply %s: %w", e.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applies
		(seq, id, snapshot, changeset, fingerprint, view_attached, animated, settled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.Seq,
		e.ID,
		string(snapJSON),
		string(e.Changeset),
		e.Fingerprint,
		e.ViewAttached,
		e.Animated,
		e.Settled,
	)
	if err != nil {
		return fmt.Errorf("write apply %s: %w", e.ID, err)
	}
	return nil
}

// ReadApplies returns the apply log ordered by seq.
func (s *Store) ReadApplies(ctx context.Context) ([]ApplyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, snapshot, changeset, fingerprint, view_attached, animated, settled
		FROM applies
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query applies: %w", err)
	}
	defer rows.Close()

	entries := []ApplyEntry{}
	for rows.Next() {
		var e ApplyEntry
		var snapJSON, changeset string
		if err := rows.Scan(&e.Seq, &e.ID, &snapJSON, &changeset, &e.Fingerprint, &e.ViewAttached, &e.Animated, &e.Settled); err != nil {
			return nil, fmt.Errorf("scan apply: %w", err)
		}
		if err := json.Unmarshal([]byte(snapJSON), &e.Snapshot); err != nil {
			return nil, fmt.Errorf("apply %s: decode snapshot: %w", e.ID, err)
		}
		e.Changeset = []byte(changeset)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applies: %w", err)
	}
	return entries, nil
}

// LastApplySeq returns the seq of the newest logged apply, 0 when the log is
// empty. Coordinators resume numbering from it.
func (s *Store) LastApplySeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM applies`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last apply seq: %w", err)
	}
	return seq, nil
}
