package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubhive/chat-service/internal/types"
)

const participantColumns = "id, room_id, member_id, nickname, role, active, joined_at, left_at, last_read_at"

func scanParticipant(row interface{ Scan(...any) error }) (Participant, error) {
	var p Participant
	err := row.Scan(
		&p.Id,
		&p.RoomId,
		&p.MemberId,
		&p.Nickname,
		&p.Role,
		&p.Active,
		&p.JoinedAt,
		&p.LeftAt,
		&p.LastReadAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Participant{}, ErrNotFound
	}

	return p, err
}

// refreshParticipantCount recomputes the denormalized counter from the
// active roster inside the caller's transaction, so the two can never
// drift within a committed operation.
func refreshParticipantCount(tx *sql.Tx, roomId int, now time.Time) (Room, error) {
	row := tx.QueryRow(
		"UPDATE rooms SET participant_count = "+
			"(SELECT COUNT(*) FROM room_participants WHERE room_id = $1 AND active), "+
			"updated_at = $2 WHERE id = $1 RETURNING "+roomColumns,
		roomId,
		now,
	)

	return scanRoom(row)
}

func lockRoom(tx *sql.Tx, roomId int) (Room, error) {
	row := tx.QueryRow("SELECT "+roomColumns+" FROM rooms WHERE id = $1 FOR UPDATE", roomId)
	return scanRoom(row)
}

// JoinRoom reactivates the member's prior roster row or inserts a new one,
// and recomputes the counter, all in one transaction. Capacity and
// duplicate-membership checks happen under the room row lock so the room
// can never exceed max_participants under concurrent joins.
func (db *PgChatRepository) JoinRoom(roomId, memberId int, nickname string) (JoinRoomResult, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return JoinRoomResult{}, err
	}
	defer tx.Rollback()

	room, err := lockRoom(tx, roomId)
	if err != nil {
		return JoinRoomResult{}, err
	}

	if room.Status != types.RoomStatusActive {
		return JoinRoomResult{}, ErrRoomNotJoinable
	}

	existing, err := scanParticipant(tx.QueryRow(
		"SELECT "+participantColumns+" FROM room_participants "+
			"WHERE room_id = $1 AND member_id = $2 FOR UPDATE",
		roomId, memberId,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return JoinRoomResult{}, err
	}

	if existing.Id != 0 && existing.Active {
		return JoinRoomResult{}, ErrAlreadyParticipant
	}

	var activeCount int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM room_participants WHERE room_id = $1 AND active",
		roomId,
	).Scan(&activeCount); err != nil {
		return JoinRoomResult{}, err
	}

	if activeCount >= room.MaxParticipants {
		return JoinRoomResult{}, ErrRoomFull
	}

	now := time.Now().UTC()

	var participant Participant
	if existing.Id != 0 {
		// Re-join keeps the row's prior role (an ADMIN who left comes
		// back as ADMIN).
		participant, err = scanParticipant(tx.QueryRow(
			"UPDATE room_participants SET active = TRUE, nickname = $2, joined_at = $3, left_at = NULL "+
				"WHERE id = $1 RETURNING "+participantColumns,
			existing.Id, nickname, now,
		))
	} else {
		participant, err = scanParticipant(tx.QueryRow(
			"INSERT INTO room_participants (room_id, member_id, nickname, role, active, joined_at) "+
				"VALUES ($1, $2, $3, $4, TRUE, $5) RETURNING "+participantColumns,
			roomId, memberId, nickname, types.RoleMember, now,
		))
	}
	if err != nil {
		return JoinRoomResult{}, err
	}

	room, err = refreshParticipantCount(tx, roomId, now)
	if err != nil {
		return JoinRoomResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return JoinRoomResult{}, err
	}

	return JoinRoomResult{Room: room, Participant: participant}, nil
}

// LeaveRoom deactivates the member's roster row and, when the leaver holds
// CREATOR, either promotes the earliest-joined remaining active participant
// or closes the room. Successor selection and deactivation share one
// transaction so duplicate leave calls cannot race the transfer.
func (db *PgChatRepository) LeaveRoom(roomId, memberId int) (LeaveRoomResult, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return LeaveRoomResult{}, err
	}
	defer tx.Rollback()

	if _, err := lockRoom(tx, roomId); err != nil {
		return LeaveRoomResult{}, err
	}

	leaver, err := scanParticipant(tx.QueryRow(
		"SELECT "+participantColumns+" FROM room_participants "+
			"WHERE room_id = $1 AND member_id = $2 AND active FOR UPDATE",
		roomId, memberId,
	))
	if errors.Is(err, ErrNotFound) {
		return LeaveRoomResult{}, ErrNotParticipant
	} else if err != nil {
		return LeaveRoomResult{}, err
	}

	now := time.Now().UTC()
	var result LeaveRoomResult

	if leaver.Role == types.RoleCreator {
		successor, err := scanParticipant(tx.QueryRow(
			"SELECT "+participantColumns+" FROM room_participants "+
				"WHERE room_id = $1 AND active AND member_id <> $2 "+
				"ORDER BY joined_at ASC, id ASC LIMIT 1 FOR UPDATE",
			roomId, memberId,
		))
		switch {
		case err == nil:
			promoted, err := scanParticipant(tx.QueryRow(
				"UPDATE room_participants SET role = $2 WHERE id = $1 RETURNING "+participantColumns,
				successor.Id, types.RoleCreator,
			))
			if err != nil {
				return LeaveRoomResult{}, err
			}
			result.Promoted = &promoted

			if _, err := tx.Exec(
				"UPDATE rooms SET creator_id = $2 WHERE id = $1",
				roomId, promoted.MemberId,
			); err != nil {
				return LeaveRoomResult{}, err
			}

			// The leaver's row drops to MEMBER so a later re-join
			// cannot produce two active creators.
			if _, err := tx.Exec(
				"UPDATE room_participants SET role = $2 WHERE id = $1",
				leaver.Id, types.RoleMember,
			); err != nil {
				return LeaveRoomResult{}, err
			}
			leaver.Role = types.RoleMember
		case errors.Is(err, ErrNotFound):
			// No successor: last active participant out closes the room.
			if _, err := tx.Exec(
				"UPDATE rooms SET status = $2 WHERE id = $1",
				roomId, types.RoomStatusClosed,
			); err != nil {
				return LeaveRoomResult{}, err
			}
			result.Closed = true
		default:
			return LeaveRoomResult{}, fmt.Errorf("select successor: %w", err)
		}
	}

	leaver.Active = false
	leaver.LeftAt = sql.NullTime{Time: now, Valid: true}
	if _, err := tx.Exec(
		"UPDATE room_participants SET active = FALSE, left_at = $2 WHERE id = $1",
		leaver.Id, now,
	); err != nil {
		return LeaveRoomResult{}, err
	}

	room, err := refreshParticipantCount(tx, roomId, now)
	if err != nil {
		return LeaveRoomResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return LeaveRoomResult{}, err
	}

	result.Room = room
	result.Leaver = leaver
	return result, nil
}

func (db *PgChatRepository) GetParticipant(roomId, memberId int) (Participant, error) {
	row := db.conn.QueryRow(
		"SELECT "+participantColumns+" FROM room_participants "+
			"WHERE room_id = $1 AND member_id = $2 LIMIT 1",
		roomId, memberId,
	)

	return scanParticipant(row)
}

func (db *PgChatRepository) ListActiveParticipants(roomId int) ([]Participant, error) {
	rows, err := db.conn.Query(
		"SELECT "+participantColumns+" FROM room_participants "+
			"WHERE room_id = $1 AND active ORDER BY joined_at ASC, id ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (db *PgChatRepository) UpdateParticipantRole(roomId, memberId int, role types.ParticipantRole) error {
	res, err := db.conn.Exec(
		"UPDATE room_participants SET role = $3 WHERE room_id = $1 AND member_id = $2 AND active",
		roomId, memberId, role,
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotParticipant
	}
	return nil
}

func (db *PgChatRepository) UpdateLastReadAt(roomId, memberId int) error {
	res, err := db.conn.Exec(
		"UPDATE room_participants SET last_read_at = $3 WHERE room_id = $1 AND member_id = $2 AND active",
		roomId, memberId, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotParticipant
	}
	return nil
}
