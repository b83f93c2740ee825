package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertRequest implements the dedup contract of spec.md §4.4/§4.5: a
// caller supplying the same (conversationID, inputHash) pair gets back the
// existing Request — created, in flight, or finished — instead of a new
// row. messageID/model/paramsJSON only take effect on first insert.
//
// The UNIQUE(conversation_id, input_hash) constraint is the source of
// truth; this selects first, then inserts with ON CONFLICT DO NOTHING and
// reselects, so a caller that loses a concurrent insert race reads back the
// winner's row.
func (s *Store) UpsertRequest(ctx context.Context, conversationID, messageID int64, model, paramsJSON, inputHash string) (*Request, bool, error) {
	if existing, err := s.GetRequestByHash(ctx, conversationID, inputHash); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (conversation_id, message_id, model, params_json, input_hash, status, tries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(conversation_id, input_hash) DO NOTHING`,
		conversationID, messageID, model, paramsJSON, inputHash, string(StatusQueued), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("inserting request: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("reading insert result: %w", err)
	}

	req, err := s.GetRequestByHash(ctx, conversationID, inputHash)
	if err != nil {
		return nil, false, err
	}
	if req == nil {
		return nil, false, fmt.Errorf("upserting request: row missing after insert")
	}
	// A concurrent inserter may have won the race; tell them apart by
	// whether this call's INSERT actually added a row.
	return req, inserted == 1, nil
}

// GetRequest loads a request by its primary key.
func (s *Store) GetRequest(ctx context.Context, id int64) (*Request, error) {
	row := s.db.QueryRowContext(ctx, selectRequestSQL+` WHERE id = ?`, id)
	return scanRequest(row)
}

// GetRequestByHash loads a request by its dedup key.
func (s *Store) GetRequestByHash(ctx context.Context, conversationID int64, inputHash string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		selectRequestSQL+` WHERE conversation_id = ? AND input_hash = ?`, conversationID, inputHash)
	return scanRequest(row)
}

const selectRequestSQL = `SELECT id, conversation_id, message_id, model, params_json, input_hash,
	provider_response_id, status, error_json, tries, started_at, completed_at,
	output_text, raw_json, usage_json, created_at, updated_at FROM requests`

func scanRequest(row *sql.Row) (*Request, error) {
	var r Request
	var status, createdAt, updatedAt string
	var startedAt, completedAt sql.NullString
	if err := row.Scan(&r.ID, &r.ConversationID, &r.MessageID, &r.Model, &r.ParamsJSON, &r.InputHash,
		&r.ProviderResponseID, &status, &r.ErrorJSON, &r.Tries, &startedAt, &completedAt,
		&r.OutputText, &r.RawJSON, &r.UsageJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning request: %w", err)
	}
	r.Status = Status(status)

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t, err := parseTime(startedAt.String)
		if err != nil {
			return nil, err
		}
		r.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		r.CompletedAt = &t
	}
	return &r, nil
}

// transitionStatus enforces the monotonicity invariant from spec.md §8
// ("queued < in_progress < terminal, never backwards") before writing a
// new status.
func (s *Store) transitionStatus(ctx context.Context, id int64, next Status, mutate func(tx *sql.Tx, now time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM requests WHERE id = ?`, id).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("request %d not found", id)
		}
		return fmt.Errorf("reading current status: %w", err)
	}
	if Status(current).rank() > next.rank() {
		return fmt.Errorf("illegal status transition %s -> %s for request %d", current, next, id)
	}

	now := time.Now()
	if mutate != nil {
		if err := mutate(tx, now); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE id = ?`, string(next), formatTime(now), id); err != nil {
		return fmt.Errorf("updating request status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status transition: %w", err)
	}
	return nil
}

// MarkStarted transitions a queued request into in_progress, recording the
// provider's response id when the provider assigned one up front and
// bumping tries.
func (s *Store) MarkStarted(ctx context.Context, id int64, providerResponseID *string) error {
	return s.transitionStatus(ctx, id, StatusInProgress, func(tx *sql.Tx, now time.Time) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE requests SET tries = tries + 1, started_at = ?, provider_response_id = COALESCE(?, provider_response_id) WHERE id = ?`,
			formatTime(now), providerResponseID, id)
		if err != nil {
			return fmt.Errorf("marking request started: %w", err)
		}
		return nil
	})
}

// SaveCompletion transitions a request to completed and records the
// upstream output.
func (s *Store) SaveCompletion(ctx context.Context, id int64, outputText string, raw json.RawMessage, usage json.RawMessage) error {
	return s.transitionStatus(ctx, id, StatusCompleted, func(tx *sql.Tx, now time.Time) error {
		rawStr, usageStr := string(raw), string(usage)
		_, err := tx.ExecContext(ctx,
			`UPDATE requests SET output_text = ?, raw_json = ?, usage_json = ?, completed_at = ? WHERE id = ?`,
			outputText, nullIfEmpty(rawStr), nullIfEmpty(usageStr), formatTime(now), id)
		if err != nil {
			return fmt.Errorf("saving completion: %w", err)
		}
		return nil
	})
}

// SaveFailure transitions a request to failed and records the taxonomy
// error that ended it.
func (s *Store) SaveFailure(ctx context.Context, id int64, errorJSON json.RawMessage) error {
	return s.transitionStatus(ctx, id, StatusFailed, func(tx *sql.Tx, now time.Time) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE requests SET error_json = ?, completed_at = ? WHERE id = ?`,
			string(errorJSON), formatTime(now), id)
		if err != nil {
			return fmt.Errorf("saving failure: %w", err)
		}
		return nil
	})
}

// TouchInProgress refreshes updated_at on an in_progress request during
// polling (spec.md §4.4 step 8: "on queued|in_progress: update status").
// It is a no-op transition (in_progress -> in_progress), which the
// monotonicity guard in transitionStatus accepts until the request reaches
// a terminal status; after that it is rejected like any other transition.
func (s *Store) TouchInProgress(ctx context.Context, id int64) error {
	return s.transitionStatus(ctx, id, StatusInProgress, nil)
}

// SaveCancellation transitions a request to cancelled.
func (s *Store) SaveCancellation(ctx context.Context, id int64) error {
	return s.transitionStatus(ctx, id, StatusCancelled, func(tx *sql.Tx, now time.Time) error {
		_, err := tx.ExecContext(ctx, `UPDATE requests SET completed_at = ? WHERE id = ?`, formatTime(now), id)
		return err
	})
}

// SaveExpiry transitions a request to expired, used by the poller when the
// upstream provider reports the deferred response as expired.
func (s *Store) SaveExpiry(ctx context.Context, id int64, errorJSON json.RawMessage) error {
	return s.transitionStatus(ctx, id, StatusExpired, func(tx *sql.Tx, now time.Time) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE requests SET error_json = ?, completed_at = ? WHERE id = ?`,
			string(errorJSON), formatTime(now), id)
		return err
	})
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
