package client

import (
	"encoding/json"
	"fmt"

	"campuschat/internal/events"
	"campuschat/internal/transport/httpdto"
)

// DecodeEvent maps an envelope to its typed payload. Unknown event
// names are an error so protocol drift surfaces loudly in clients.
func DecodeEvent(env events.Envelope) (any, error) {
	switch env.Event {
	case events.EventReceiveMessage, events.EventMessageEdited:
		var p httpdto.MessagePayload
		return decode(env, &p)
	case events.EventMessageDeleted:
		var p httpdto.MessageDeletedPayload
		return decode(env, &p)
	case events.EventReactionAdded, events.EventReactionRemoved:
		var p httpdto.ReactionPayload
		return decode(env, &p)
	case events.EventMessageRead:
		var p httpdto.ReadPayload
		return decode(env, &p)
	case events.EventUserTyping:
		var p httpdto.TypingPayload
		return decode(env, &p)
	case events.EventUserJoined, events.EventUserLeft:
		var p httpdto.MembershipPayload
		return decode(env, &p)
	case events.EventUserStatusChanged:
		var p httpdto.StatusPayload
		return decode(env, &p)
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

func decode[T any](env events.Envelope, into *T) (T, error) {
	err := json.Unmarshal(env.Payload, into)
	return *into, err
}
