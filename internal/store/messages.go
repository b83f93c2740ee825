package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const maxAppendRetries = 5

// AppendMessage inserts a message with the next sequence number for its
// conversation, atomically with bumping the conversation's updated_at
// (spec.md §3, §4.5: "seq := max(seq|conversation)+1 within the same
// transaction that bumps conversation.updatedAt"). requestID is non-nil
// only for assistant messages produced by a completed Request.
//
// On a UNIQUE(conversation_id, seq) collision from a concurrent appender,
// the whole transaction is retried with a freshly recomputed seq — "one
// transaction wins, the other retries" (spec.md §4.5).
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role, content string, requestID *int64) (*Message, error) {
	var msg *Message
	var err error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		msg, err = s.appendMessageOnce(ctx, conversationID, role, content, requestID)
		if err == nil {
			return msg, nil
		}
		if !isUniqueConstraintErr(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("appending message: exhausted retries on seq collision: %w", err)
}

func (s *Store) appendMessageOnce(ctx context.Context, conversationID int64, role, content string, requestID *int64) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM messages WHERE conversation_id = ?`, conversationID,
	).Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("computing next seq: %w", err)
	}
	nextSeq := 1
	if maxSeq.Valid {
		nextSeq = int(maxSeq.Int64) + 1
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at, seq, request_id) VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID, role, content, formatTime(now), nextSeq, requestID)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}

	if err := touchConversation(ctx, tx, conversationID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message append: %w", err)
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
		Seq:            nextSeq,
		RequestID:      requestID,
	}, nil
}

// RecentMessages returns the last `limit` messages of a conversation in
// ascending seq order — the history-trimming window the async engine
// builds upstream input from (spec.md §4.4: "trimmed to the most recent
// maxHistoryMessages"). Trimming never mutates the store.
func (s *Store) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at, seq, request_id
		 FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt, &m.Seq, &m.RequestID); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into ascending seq order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessageCount returns the number of messages in a conversation.
func (s *Store) MessageCount(ctx context.Context, conversationID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}
