package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/clubhive/chat-service/internal/types"
)

// Registry tracks which identities are live-connected to which room. It is
// process-local and rebuilt empty on restart: the durable roster decides
// membership, the registry only decides who receives live events right now.
//
// The map is sharded per room: mutations on one room's entry never contend
// with another room's.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomPresence
}

type roomPresence struct {
	mu sync.Mutex
	// dead is set under mu when the empty-room GC unlinks this entry
	// from the registry. A Join that fetched the pointer before the
	// unlink must not write into it.
	dead       bool
	identities map[string]struct{}
	details    map[string]types.MemberPresence
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*roomPresence),
	}
}

func (r *Registry) room(roomId string, create bool) *roomPresence {
	r.mu.RLock()
	rp, ok := r.rooms[roomId]
	r.mu.RUnlock()
	if ok || !create {
		return rp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rp, ok = r.rooms[roomId]; ok {
		return rp
	}

	rp = &roomPresence{
		identities: make(map[string]struct{}),
		details:    make(map[string]types.MemberPresence),
	}
	r.rooms[roomId] = rp
	return rp
}

// Join registers an identity as present. Re-adding an already-present
// identity refreshes its detail and returns false, so reconnects do not
// flood observers with duplicate join notifications.
func (r *Registry) Join(roomId, identity string, memberId int, email string) bool {
	for {
		rp := r.room(roomId, true)

		rp.mu.Lock()
		if rp.dead {
			// Lost the race with a concurrent Leave that emptied and
			// unlinked this entry; retry against a linked one.
			rp.mu.Unlock()
			continue
		}

		_, present := rp.identities[identity]
		rp.identities[identity] = struct{}{}

		now := time.Now().UTC()
		detail, ok := rp.details[identity]
		if !ok {
			detail = types.MemberPresence{
				MemberId:    memberId,
				Nickname:    identity,
				Email:       email,
				ConnectedAt: now,
			}
		}
		detail.LastActiveAt = now
		rp.details[identity] = detail
		rp.mu.Unlock()

		return !present
	}
}

// Leave removes an identity. When the room's identity set becomes empty the
// room entry itself is dropped from the registry.
func (r *Registry) Leave(roomId, identity string) bool {
	rp := r.room(roomId, false)
	if rp == nil {
		return false
	}

	rp.mu.Lock()
	_, present := rp.identities[identity]
	delete(rp.identities, identity)
	delete(rp.details, identity)
	empty := len(rp.identities) == 0
	rp.mu.Unlock()

	if empty {
		r.mu.Lock()
		// Re-check under the registry lock: a concurrent Join may have
		// repopulated the entry. Marking it dead under its own lock
		// stops a Join still holding the stale pointer from writing
		// into the unlinked struct.
		rp.mu.Lock()
		if len(rp.identities) == 0 && r.rooms[roomId] == rp {
			rp.dead = true
			delete(r.rooms, roomId)
		}
		rp.mu.Unlock()
		r.mu.Unlock()
	}

	return present
}

func (r *Registry) IsPresent(roomId, identity string) bool {
	rp := r.room(roomId, false)
	if rp == nil {
		return false
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	_, ok := rp.identities[identity]
	return ok
}

func (r *Registry) OnlineCount(roomId string) int {
	rp := r.room(roomId, false)
	if rp == nil {
		return 0
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.identities)
}

func (r *Registry) OnlineIdentities(roomId string) []string {
	rp := r.room(roomId, false)
	if rp == nil {
		return []string{}
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	identities := make([]string, 0, len(rp.identities))
	for id := range rp.identities {
		identities = append(identities, id)
	}
	sort.Strings(identities)
	return identities
}

// Details returns the detail record for every present identity. An identity
// with no side-table entry gets a synthesized placeholder so the list never
// misses a present member.
func (r *Registry) Details(roomId string) []types.MemberPresence {
	rp := r.room(roomId, false)
	if rp == nil {
		return []types.MemberPresence{}
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	details := make([]types.MemberPresence, 0, len(rp.identities))
	for id := range rp.identities {
		detail, ok := rp.details[id]
		if !ok {
			detail = types.MemberPresence{Nickname: id}
		}
		details = append(details, detail)
	}

	sort.Slice(details, func(i, j int) bool {
		return details[i].Nickname < details[j].Nickname
	})
	return details
}

// Touch refreshes an identity's last-activity time, if present.
func (r *Registry) Touch(roomId, identity string) {
	rp := r.room(roomId, false)
	if rp == nil {
		return
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	if detail, ok := rp.details[identity]; ok {
		detail.LastActiveAt = time.Now().UTC()
		rp.details[identity] = detail
	}
}

// RoomCount reports how many rooms currently have at least one identity.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
