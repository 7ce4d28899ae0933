package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubhive/chat-service/internal/types"
)

const roomColumns = "id, external_id, name, description, creator_id, max_participants, " +
	"participant_count, status, visibility, password_hash, created_at, updated_at"

func scanRoom(row interface{ Scan(...any) error }) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Description,
		&room.CreatorId,
		&room.MaxParticipants,
		&room.ParticipantCount,
		&room.Status,
		&room.Visibility,
		&room.PasswordHash,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}

	return room, err
}

// CreateRoom persists the room and its CREATOR participant row in one
// transaction, so a room never exists without exactly one creator on the
// roster and the counter starts consistent with it.
func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var passwordHash sql.NullString
	if params.PasswordHash != "" {
		passwordHash = sql.NullString{String: params.PasswordHash, Valid: true}
	}

	res := tx.QueryRow(
		"INSERT INTO rooms (external_id, name, description, creator_id, max_participants, "+
			"participant_count, status, visibility, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $8, $9, $9) RETURNING "+roomColumns,
		params.ExternalId,
		params.Name,
		params.Description,
		params.CreatorId,
		params.MaxParticipants,
		types.RoomStatusActive,
		params.Visibility,
		passwordHash,
		now,
	)

	room, err := scanRoom(res)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO room_participants (room_id, member_id, nickname, role, active, joined_at) "+
			"VALUES ($1, $2, $3, $4, TRUE, $5)",
		room.Id,
		params.CreatorId,
		params.CreatorNickname,
		types.RoleCreator,
		now,
	)
	if err != nil {
		return Room{}, err
	}

	if err := tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgChatRepository) GetRoomById(id int) (Room, error) {
	row := db.conn.QueryRow("SELECT "+roomColumns+" FROM rooms WHERE id = $1 LIMIT 1", id)
	return scanRoom(row)
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow("SELECT "+roomColumns+" FROM rooms WHERE external_id = $1 LIMIT 1", externalId)
	return scanRoom(row)
}

func (db *PgChatRepository) queryRooms(query string, args ...any) ([]Room, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) ListPublicRooms(page types.PageRequest) ([]Room, error) {
	page = page.Normalize()
	return db.queryRooms(
		"SELECT "+roomColumns+" FROM rooms WHERE visibility = $1 AND status = $2 "+
			"ORDER BY created_at DESC LIMIT $3 OFFSET $4",
		types.RoomPublic, types.RoomStatusActive, page.Size, page.Offset(),
	)
}

func (db *PgChatRepository) ListPopularRooms(page types.PageRequest) ([]Room, error) {
	page = page.Normalize()
	return db.queryRooms(
		"SELECT "+roomColumns+" FROM rooms WHERE status = $1 "+
			"ORDER BY participant_count DESC, updated_at DESC LIMIT $2 OFFSET $3",
		types.RoomStatusActive, page.Size, page.Offset(),
	)
}

func (db *PgChatRepository) ListRecentlyActiveRooms(page types.PageRequest) ([]Room, error) {
	page = page.Normalize()
	return db.queryRooms(
		"SELECT "+roomColumns+" FROM rooms WHERE status = $1 "+
			"ORDER BY updated_at DESC LIMIT $2 OFFSET $3",
		types.RoomStatusActive, page.Size, page.Offset(),
	)
}

func (db *PgChatRepository) SearchRoomsByName(name string, page types.PageRequest) ([]Room, error) {
	page = page.Normalize()
	return db.queryRooms(
		"SELECT "+roomColumns+" FROM rooms WHERE status = $1 AND name ILIKE '%' || $2 || '%' "+
			"ORDER BY participant_count DESC, updated_at DESC LIMIT $3 OFFSET $4",
		types.RoomStatusActive, name, page.Size, page.Offset(),
	)
}

func (db *PgChatRepository) ListRoomsCreatedBy(memberId int) ([]Room, error) {
	return db.queryRooms(
		"SELECT "+roomColumns+" FROM rooms WHERE creator_id = $1 ORDER BY created_at DESC",
		memberId,
	)
}

func (db *PgChatRepository) ListRoomsJoinedBy(memberId int) ([]Room, error) {
	return db.queryRooms(
		"SELECT "+prefixedRoomColumns("r")+" FROM room_participants p "+
			"JOIN rooms r ON r.id = p.room_id "+
			"WHERE p.member_id = $1 AND p.active ORDER BY p.joined_at DESC",
		memberId,
	)
}

func prefixedRoomColumns(alias string) string {
	return alias + ".id, " + alias + ".external_id, " + alias + ".name, " + alias + ".description, " +
		alias + ".creator_id, " + alias + ".max_participants, " + alias + ".participant_count, " +
		alias + ".status, " + alias + ".visibility, " + alias + ".password_hash, " +
		alias + ".created_at, " + alias + ".updated_at"
}

func (db *PgChatRepository) UpdateRoomStatus(roomId int, status types.RoomStatus) (Room, error) {
	row := db.conn.QueryRow(
		"UPDATE rooms SET status = $2, updated_at = $3 WHERE id = $1 RETURNING "+roomColumns,
		roomId,
		status,
		time.Now().UTC(),
	)

	return scanRoom(row)
}
