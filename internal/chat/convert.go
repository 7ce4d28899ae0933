package chat

import (
	"github.com/clubhive/chat-service/internal/database"
	"github.com/clubhive/chat-service/internal/types"
)

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:               r.Id,
		ExternalId:       r.ExternalId,
		Name:             r.Name,
		Description:      r.Description,
		CreatorId:        r.CreatorId,
		MaxParticipants:  r.MaxParticipants,
		ParticipantCount: r.ParticipantCount,
		Status:           r.Status,
		Visibility:       r.Visibility,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toRooms(dbRooms []database.Room) []types.Room {
	rooms := make([]types.Room, len(dbRooms))
	for i, r := range dbRooms {
		rooms[i] = toRoom(r)
	}
	return rooms
}

func toParticipant(p database.Participant) types.Participant {
	participant := types.Participant{
		Id:       p.Id,
		RoomId:   p.RoomId,
		MemberId: p.MemberId,
		Nickname: p.Nickname,
		Role:     p.Role,
		Active:   p.Active,
		JoinedAt: p.JoinedAt,
	}
	if p.LeftAt.Valid {
		t := p.LeftAt.Time
		participant.LeftAt = &t
	}
	if p.LastReadAt.Valid {
		t := p.LastReadAt.Time
		participant.LastReadAt = &t
	}
	return participant
}

func toMessage(m database.Message) types.Message {
	msg := types.Message{
		Id:        m.Id,
		RoomId:    m.RoomId,
		Content:   m.Content,
		Type:      m.Type,
		Deleted:   m.Deleted,
		CreatedAt: m.CreatedAt,
	}
	if m.SenderId.Valid {
		id := int(m.SenderId.Int64)
		msg.SenderId = &id
	}
	if m.SenderNickname.Valid {
		msg.Nickname = m.SenderNickname.String
	}
	if m.Payload.Valid {
		msg.Payload = m.Payload.String
	}
	return msg
}

func toMessages(dbMsgs []database.Message) []types.Message {
	msgs := make([]types.Message, len(dbMsgs))
	for i, m := range dbMsgs {
		msgs[i] = toMessage(m)
	}
	return msgs
}
