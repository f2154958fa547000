package domain

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// UserIDSet is a set of user ids serialized as a JSON array, so it can
// live in a jsonb column while keeping O(1) membership checks in memory.
type UserIDSet map[uuid.UUID]struct{}

func NewUserIDSet(ids ...uuid.UUID) UserIDSet {
	s := make(UserIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UserIDSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s UserIDSet) Add(id uuid.UUID) {
	s[id] = struct{}{}
}

func (s UserIDSet) Remove(id uuid.UUID) {
	delete(s, id)
}

func (s UserIDSet) Len() int {
	return len(s)
}

// Sorted returns the members in a stable order for wire payloads.
func (s UserIDSet) Sorted() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (s UserIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *UserIDSet) UnmarshalJSON(data []byte) error {
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewUserIDSet(ids...)
	return nil
}

// ReactionSet maps an emoji to the set of users currently holding it.
// A user may hold several different emojis on one message at once.
type ReactionSet map[string]UserIDSet

func (r ReactionSet) Has(userID uuid.UUID, emoji string) bool {
	users, ok := r[emoji]
	return ok && users.Contains(userID)
}

// Toggle flips the (user, emoji) reaction and reports whether it is now
// present. Empty emoji buckets are dropped so the map never accumulates
// dead keys.
func (r ReactionSet) Toggle(userID uuid.UUID, emoji string) bool {
	users, ok := r[emoji]
	if ok && users.Contains(userID) {
		users.Remove(userID)
		if users.Len() == 0 {
			delete(r, emoji)
		}
		return false
	}
	if !ok {
		users = NewUserIDSet()
		r[emoji] = users
	}
	users.Add(userID)
	return true
}

// Count returns the number of users holding the given emoji.
func (r ReactionSet) Count(emoji string) int {
	return len(r[emoji])
}

// Emojis returns the emoji keys in a stable order.
func (r ReactionSet) Emojis() []string {
	emojis := make([]string, 0, len(r))
	for e := range r {
		emojis = append(emojis, e)
	}
	sort.Strings(emojis)
	return emojis
}
