package events

// Event names on the wire. These are the contract with deployed clients
// and must not be renamed.
const (
	EventReceiveMessage    = "ReceiveMessage"
	EventMessageEdited     = "MessageEdited"
	EventMessageDeleted    = "MessageDeleted"
	EventReactionAdded     = "ReactionAdded"
	EventReactionRemoved   = "ReactionRemoved"
	EventMessageRead       = "MessageRead"
	EventUserTyping        = "UserTyping"
	EventUserJoined        = "UserJoined"
	EventUserLeft          = "UserLeft"
	EventUserStatusChanged = "UserStatusChanged"
)

// Room prefixes used for fan-out subscriptions.
const (
	RoomPrefixConversation = "room:conversation:"
	RoomPrefixChannel      = "room:channel:"
	RoomPrefixUser         = "room:user:"
)
