package database

import (
	"github.com/stretchr/testify/mock"

	"github.com/clubhive/chat-service/internal/types"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomById(id int) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) ListPublicRooms(page types.PageRequest) ([]Room, error) {
	args := m.Called(page)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) ListPopularRooms(page types.PageRequest) ([]Room, error) {
	args := m.Called(page)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) ListRecentlyActiveRooms(page types.PageRequest) ([]Room, error) {
	args := m.Called(page)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) SearchRoomsByName(name string, page types.PageRequest) ([]Room, error) {
	args := m.Called(name, page)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) ListRoomsCreatedBy(memberId int) ([]Room, error) {
	args := m.Called(memberId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) ListRoomsJoinedBy(memberId int) ([]Room, error) {
	args := m.Called(memberId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) UpdateRoomStatus(roomId int, status types.RoomStatus) (Room, error) {
	args := m.Called(roomId, status)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) JoinRoom(roomId, memberId int, nickname string) (JoinRoomResult, error) {
	args := m.Called(roomId, memberId, nickname)
	return args.Get(0).(JoinRoomResult), args.Error(1)
}
func (m *MockChatRepository) LeaveRoom(roomId, memberId int) (LeaveRoomResult, error) {
	args := m.Called(roomId, memberId)
	return args.Get(0).(LeaveRoomResult), args.Error(1)
}
func (m *MockChatRepository) GetParticipant(roomId, memberId int) (Participant, error) {
	args := m.Called(roomId, memberId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockChatRepository) ListActiveParticipants(roomId int) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockChatRepository) UpdateParticipantRole(roomId, memberId int, role types.ParticipantRole) error {
	args := m.Called(roomId, memberId, role)
	return args.Error(0)
}
func (m *MockChatRepository) UpdateLastReadAt(roomId, memberId int) error {
	args := m.Called(roomId, memberId)
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessages(roomId int, page types.PageRequest) ([]Message, error) {
	args := m.Called(roomId, page)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) GetRecentMessages(roomId, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) CountUnread(roomId, memberId int) (int, error) {
	args := m.Called(roomId, memberId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) SoftDeleteMessage(messageId, requesterId int) (Message, error) {
	args := m.Called(messageId, requesterId)
	return args.Get(0).(Message), args.Error(1)
}
