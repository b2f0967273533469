package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpg-service/internal/models"
)

type messageRepo struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &messageRepo{db: db}
}

const messageColumns = `
	seq,
	conversation_key,
	sender_role,
	sender_id,
	body,
	version,
	is_read,
	deleted,
	created_at,
	updated_at`

func scanMessage(row scanner, m *models.ChatMessage) error {
	return row.Scan(
		&m.Seq,
		&m.ConversationKey,
		&m.SenderRole,
		&m.SenderID,
		&m.Body,
		&m.Version,
		&m.IsRead,
		&m.Deleted,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
}

func (r *messageRepo) Append(ctx context.Context, m *models.ChatMessage) error {
	if m.ConversationKey == uuid.Nil {
		return fmt.Errorf("%w: conversation cannot be empty", ErrInvalidInput)
	}

	sql := `
		INSERT INTO chat_messages (
			conversation_key,
			sender_role,
			sender_id,
			body,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING seq, version`

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	err := r.db.QueryRow(ctx, sql,
		m.ConversationKey,
		m.SenderRole,
		m.SenderID,
		m.Body,
		now,
	).Scan(&m.Seq, &m.Version)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

func (r *messageRepo) GetBySeq(ctx context.Context, seq int64) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := scanMessage(r.db.QueryRow(ctx, `SELECT`+messageColumns+` FROM chat_messages WHERE seq = $1`, seq), &m)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message %d: %w", seq, err)
	}

	return &m, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, key uuid.UUID) ([]models.ChatMessage, error) {
	sql := `SELECT` + messageColumns + ` FROM chat_messages WHERE conversation_key = $1 ORDER BY seq`

	rows, err := r.db.Query(ctx, sql, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for %s: %w", key, err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan messages: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return messages, nil
}

func (r *messageRepo) Edit(ctx context.Context, seq int64, body string) (*models.ChatMessage, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.ChatMessage
	err = scanMessage(tx.QueryRow(ctx, `SELECT`+messageColumns+` FROM chat_messages WHERE seq = $1 FOR UPDATE`, seq), &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock message %d: %w", seq, err)
	}
	if current.Deleted {
		return nil, ErrNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO message_revisions (message_seq, version, body, edited_at) VALUES ($1, $2, $3, $4)`,
		seq, current.Version, current.Body, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store message revision: %w", err)
	}

	sql := `UPDATE chat_messages
		SET body = $1, version = version + 1, updated_at = $2
		WHERE seq = $3
		RETURNING` + messageColumns

	var updated models.ChatMessage
	if err := scanMessage(tx.QueryRow(ctx, sql, body, time.Now().UTC(), seq), &updated); err != nil {
		return nil, fmt.Errorf("failed to edit message %d: %w", seq, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &updated, nil
}

func (r *messageRepo) Tombstone(ctx context.Context, seq int64) (*models.ChatMessage, error) {
	sql := `UPDATE chat_messages
		SET body = '', deleted = TRUE, version = version + 1, updated_at = $1
		WHERE seq = $2 AND NOT deleted
		RETURNING` + messageColumns

	var m models.ChatMessage
	if err := scanMessage(r.db.QueryRow(ctx, sql, time.Now().UTC(), seq), &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete message %d: %w", seq, err)
	}

	return &m, nil
}

func (r *messageRepo) Revisions(ctx context.Context, seq int64) ([]models.MessageRevision, error) {
	rows, err := r.db.Query(ctx,
		`SELECT message_seq, version, body, edited_at FROM message_revisions WHERE message_seq = $1 ORDER BY version`,
		seq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of %d: %w", seq, err)
	}
	defer rows.Close()

	revisions := []models.MessageRevision{}
	for rows.Next() {
		var rev models.MessageRevision
		if err := rows.Scan(&rev.MessageSeq, &rev.Version, &rev.Body, &rev.EditedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revisions: %w", err)
		}
		revisions = append(revisions, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return revisions, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, key uuid.UUID, from models.SenderRole) (int64, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE chat_messages SET is_read = TRUE WHERE conversation_key = $1 AND sender_role = $2 AND NOT is_read`,
		key, from,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *messageRepo) Conversations(ctx context.Context) ([]models.Conversation, error) {
	sql := `
		SELECT
			m.conversation_key,
			u.full_name,
			u.email,
			m.body,
			m.created_at,
			(SELECT COUNT(*) FROM chat_messages c
				WHERE c.conversation_key = m.conversation_key
				AND c.sender_role = 'customer' AND NOT c.is_read AND NOT c.deleted)
		FROM (
			SELECT DISTINCT ON (conversation_key) conversation_key, body, created_at
			FROM chat_messages
			WHERE NOT deleted
			ORDER BY conversation_key, seq DESC
		) m
		JOIN users u ON u.id = m.conversation_key
		ORDER BY m.created_at DESC`

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(
			&c.ConversationKey,
			&c.CustomerName,
			&c.CustomerEmail,
			&c.LastMessage,
			&c.LastMessageAt,
			&c.Unread,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversations: %w", err)
		}
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return conversations, nil
}
