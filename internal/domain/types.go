package domain

type ConversationType string

const (
	ConversationTypeDirect ConversationType = "DIRECT"
	ConversationTypeGroup  ConversationType = "GROUP"
)

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeVideo MessageType = "VIDEO"
	MessageTypeFile  MessageType = "FILE"
)

type ChannelType string

const (
	ChannelTypePublic  ChannelType = "PUBLIC"
	ChannelTypePrivate ChannelType = "PRIVATE"
)

// MaxAttachments caps the attachment list on a single message.
const MaxAttachments = 10
