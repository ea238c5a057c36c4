// Package thread persists conversation state keyed by thread ID.
//
// A thread is an append-only sequence of messages. Loading a thread and
// appending the messages a run produced is the checkpoint contract the chat
// agent depends on: histories are never reordered or truncated.
package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested thread does not exist.
var ErrNotFound = errors.New("thread not found")

// Thread is one persisted conversation.
type Thread struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Store manages thread persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines. Appends to the
// same thread are serialized with a per-thread advisory lock, so concurrent
// runs under one thread ID cannot interleave sequence numbers.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a thread Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create creates a new empty thread and returns its ID.
func (s *Store) Create(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO threads DEFAULT VALUES RETURNING id`,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating thread: %w", err)
	}

	s.logger.Debug("created thread", "id", id)
	return id, nil
}

// Get retrieves thread metadata by ID. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Thread, error) {
	var t Thread
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, updated_at, message_count FROM threads WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Thread{}, ErrNotFound
	}
	if err != nil {
		return Thread{}, fmt.Errorf("getting thread %s: %w", id, err)
	}
	return t, nil
}

// Exists reports whether a thread with the given ID exists.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM threads WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking thread %s: %w", id, err)
	}
	return exists, nil
}

// History loads the full message sequence of a thread, oldest first.
// A thread with no messages yields an empty slice. Returns ErrNotFound for
// an unknown thread ID.
func (s *Store) History(ctx context.Context, id uuid.UUID) ([]*ai.Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT role, content, metadata FROM thread_messages
		 WHERE thread_id = $1
		 ORDER BY sequence_number ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history for thread %s: %w", id, err)
	}
	defer rows.Close()

	messages := []*ai.Message{}
	for rows.Next() {
		var role string
		var content, metadata []byte
		if err := rows.Scan(&role, &content, &metadata); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		var parts []*ai.Part
		if err := json.Unmarshal(content, &parts); err != nil {
			return nil, fmt.Errorf("decoding message content: %w", err)
		}

		msg := &ai.Message{
			Role:    ai.Role(role),
			Content: parts,
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decoding message metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// AppendMessages appends messages to a thread in order, assigned sequential
// sequence numbers. All inserts and the thread metadata update happen in one
// transaction; a per-thread advisory lock serializes concurrent appends to
// the same thread.
//
// Returns ErrNotFound if the thread does not exist.
func (s *Store) AppendMessages(ctx context.Context, id uuid.UUID, messages []*ai.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Serialize concurrent appends for the same thread.
	// pg_advisory_xact_lock releases automatically at commit/rollback.
	if _, lockErr := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id.String()); lockErr != nil {
		return fmt.Errorf("acquiring advisory lock: %w", lockErr)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM threads WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking thread %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}

	var maxSeq int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM thread_messages WHERE thread_id = $1`,
		id,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, msg := range messages {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("encoding message content: %w", err)
		}

		// NULL metadata for the common case; message metadata is round-tripped
		// when present.
		var metadata []byte
		if len(msg.Metadata) > 0 {
			if metadata, err = json.Marshal(msg.Metadata); err != nil {
				return fmt.Errorf("encoding message metadata: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO thread_messages (thread_id, role, content, metadata, sequence_number)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, string(msg.Role), content, metadata, maxSeq+i+1,
		); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE threads
		 SET message_count = message_count + $2, updated_at = now()
		 WHERE id = $1`,
		id, len(messages),
	); err != nil {
		return fmt.Errorf("updating thread metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}

	s.logger.Debug("appended messages", "thread_id", id, "count", len(messages))
	return nil
}
