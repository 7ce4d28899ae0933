package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubhive/chat-service/internal/types"
)

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "[deleted]"

const messageColumns = "id, room_id, sender_id, sender_nickname, content, type, deleted, deleted_at, payload, created_at"

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var m Message
	err := row.Scan(
		&m.Id,
		&m.RoomId,
		&m.SenderId,
		&m.SenderNickname,
		&m.Content,
		&m.Type,
		&m.Deleted,
		&m.DeletedAt,
		&m.Payload,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}

	return m, err
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var senderId sql.NullInt64
	var senderNickname sql.NullString
	if params.SenderId != nil {
		senderId = sql.NullInt64{Int64: int64(*params.SenderId), Valid: true}
		senderNickname = sql.NullString{String: params.SenderNickname, Valid: true}
	}

	var payload sql.NullString
	if params.Payload != "" {
		payload = sql.NullString{String: params.Payload, Valid: true}
	}

	row := db.conn.QueryRow(
		"INSERT INTO room_messages (room_id, sender_id, sender_nickname, content, type, payload, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+messageColumns,
		params.RoomId,
		senderId,
		senderNickname,
		params.Content,
		params.Type,
		payload,
		time.Now().UTC(),
	)

	return scanMessage(row)
}

func (db *PgChatRepository) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// GetMessages pages a room's history, newest first, excluding soft-deleted
// rows.
func (db *PgChatRepository) GetMessages(roomId int, page types.PageRequest) ([]Message, error) {
	page = page.Normalize()
	return db.queryMessages(
		"SELECT "+messageColumns+" FROM room_messages "+
			"WHERE room_id = $1 AND NOT deleted ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		roomId, page.Size, page.Offset(),
	)
}

func (db *PgChatRepository) GetRecentMessages(roomId, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	return db.queryMessages(
		"SELECT "+messageColumns+" FROM room_messages "+
			"WHERE room_id = $1 AND NOT deleted ORDER BY created_at DESC, id DESC LIMIT $2",
		roomId, limit,
	)
}

// CountUnread counts non-self messages created after the member's read
// cursor. A member who has never read counts everything.
func (db *PgChatRepository) CountUnread(roomId, memberId int) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM room_messages m "+
			"WHERE m.room_id = $1 AND NOT m.deleted "+
			"AND (m.sender_id IS NULL OR m.sender_id <> $2) "+
			"AND m.created_at > COALESCE((SELECT p.last_read_at FROM room_participants p "+
			"WHERE p.room_id = $1 AND p.member_id = $2), 'epoch'::timestamptz)",
		roomId, memberId,
	).Scan(&count)

	return count, err
}

// SoftDeleteMessage blanks the content and marks the row deleted. Only the
// original sender may delete; the check shares the transaction with the
// update.
func (db *PgChatRepository) SoftDeleteMessage(messageId, requesterId int) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback()

	msg, err := scanMessage(tx.QueryRow(
		"SELECT "+messageColumns+" FROM room_messages WHERE id = $1 FOR UPDATE",
		messageId,
	))
	if err != nil {
		return Message{}, err
	}

	if !msg.SenderId.Valid || int(msg.SenderId.Int64) != requesterId {
		return Message{}, ErrNotSender
	}

	msg, err = scanMessage(tx.QueryRow(
		"UPDATE room_messages SET content = $2, deleted = TRUE, deleted_at = $3 "+
			"WHERE id = $1 RETURNING "+messageColumns,
		messageId, DeletedPlaceholder, time.Now().UTC(),
	))
	if err != nil {
		return Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}
