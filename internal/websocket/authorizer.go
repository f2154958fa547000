package websocket

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"campuschat/internal/events"
	"campuschat/internal/repository"
)

// RoomAuthorizer decides whether a user may join a room. Joining is the
// only gate; once in the room every event for it is visible.
type RoomAuthorizer struct {
	conversations repository.ConversationRepository
	channels      repository.ChannelRepository
}

func NewRoomAuthorizer(conversations repository.ConversationRepository, channels repository.ChannelRepository) *RoomAuthorizer {
	return &RoomAuthorizer{conversations: conversations, channels: channels}
}

func (a *RoomAuthorizer) CanJoin(ctx context.Context, userID uuid.UUID, room string) (bool, error) {
	// A user's own room is always theirs.
	if room == events.RoomPrefixUser+userID.String() {
		return true, nil
	}

	if strings.HasPrefix(room, events.RoomPrefixConversation) {
		convID, err := uuid.Parse(strings.TrimPrefix(room, events.RoomPrefixConversation))
		if err != nil {
			return false, nil
		}
		return a.conversations.IsParticipant(ctx, convID, userID)
	}

	if strings.HasPrefix(room, events.RoomPrefixChannel) {
		channelID, err := uuid.Parse(strings.TrimPrefix(room, events.RoomPrefixChannel))
		if err != nil {
			return false, nil
		}
		return a.channels.IsMember(ctx, channelID, userID)
	}

	return false, nil
}
