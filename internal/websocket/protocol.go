package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/events"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// RPC method names on the wire. These are the contract with deployed
// clients and must not be renamed.
const (
	MethodSendMessage         = "SendMessage"
	MethodAddReaction         = "AddReaction"
	MethodRemoveReaction      = "RemoveReaction"
	MethodMarkAsRead          = "MarkAsRead"
	MethodSendTypingIndicator = "SendTypingIndicator"
	MethodJoinConversation    = "JoinConversation"
	MethodLeaveConversation   = "LeaveConversation"
)

// Frame is one inbound RPC call. CallID correlates the response so the
// client can run calls concurrently over a single connection.
type Frame struct {
	CallID string          `json:"call_id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response answers exactly one Frame.
type Response struct {
	CallID string          `json:"call_id"`
	OK     bool            `json:"ok"`
	Error  *ErrorBody      `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (r Response) marshal() ([]byte, error) {
	return json.Marshal(r)
}

type sendMessageParams struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
	// Type is accepted for wire compatibility; the server infers the
	// authoritative type from the attachments.
	Type             domain.MessageType  `json:"type,omitempty"`
	Attachments      []domain.Attachment `json:"attachments,omitempty"`
	ReplyToMessageID *uuid.UUID          `json:"reply_to_message_id,omitempty"`
}

type reactionParams struct {
	MessageID uuid.UUID `json:"message_id"`
	Emoji     string    `json:"emoji"`
}

type markReadParams struct {
	MessageID uuid.UUID `json:"message_id"`
}

type typingParams struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
}

type roomParams struct {
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	ChannelID      *uuid.UUID `json:"channel_id,omitempty"`
}

type joinResult struct {
	Room string `json:"room"`
}

// Router turns inbound frames into commands and room changes. Every
// call runs under its own deadline so one slow store cannot wedge the
// connection's read loop indefinitely.
type Router struct {
	bus        *commands.Bus
	authorizer *RoomAuthorizer
	hub        *Hub
	timeout    time.Duration
	log        *logger.Logger
}

func NewRouter(bus *commands.Bus, authorizer *RoomAuthorizer, hub *Hub, timeout time.Duration, log *logger.Logger) *Router {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Router{bus: bus, authorizer: authorizer, hub: hub, timeout: timeout, log: log}
}

// Dispatch parses one frame and produces its response. Parse failures
// still answer when a call_id survived decoding; client-side timeouts
// cover the rest.
func (r *Router) Dispatch(ctx context.Context, client *Client, data []byte) Response {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
	}
	if frame.CallID == "" || frame.Method == "" {
		return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
	}
	if !client.limiter.Allow(frame.Method) {
		return errorResponse(frame.CallID, chat_errors.ErrRateLimited)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	origin := commands.Origin{ConnectionID: client.ID}

	switch frame.Method {
	case MethodSendMessage:
		var p sendMessageParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
		}
		return r.execute(ctx, frame.CallID, commands.SendMessageCommand{
			ConversationID:   p.ConversationID,
			SenderID:         client.UserID,
			Content:          p.Content,
			Attachments:      p.Attachments,
			ReplyToMessageID: p.ReplyToMessageID,
			Origin:           origin,
		})

	case MethodAddReaction, MethodRemoveReaction:
		var p reactionParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
		}
		return r.execute(ctx, frame.CallID, commands.ToggleReactionCommand{
			MessageID: p.MessageID,
			UserID:    client.UserID,
			Emoji:     p.Emoji,
			Add:       frame.Method == MethodAddReaction,
			Origin:    origin,
		})

	case MethodMarkAsRead:
		var p markReadParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
		}
		return r.execute(ctx, frame.CallID, commands.MarkReadCommand{
			MessageID: p.MessageID,
			UserID:    client.UserID,
			Origin:    origin,
		})

	case MethodSendTypingIndicator:
		var p typingParams
		if err := json.Unmarshal(frame.Params, &p); err != nil {
			return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
		}
		return r.execute(ctx, frame.CallID, commands.TypingCommand{
			ConversationID: p.ConversationID,
			UserID:         client.UserID,
			IsTyping:       p.IsTyping,
			Origin:         origin,
		})

	case MethodJoinConversation:
		return r.join(ctx, client, frame)

	case MethodLeaveConversation:
		return r.leave(client, frame)

	default:
		return errorResponse(frame.CallID, chat_errors.ErrInvalidInput)
	}
}

func (r *Router) execute(ctx context.Context, callID string, cmd commands.Command) Response {
	res, err := r.bus.Execute(ctx, cmd)
	if err != nil {
		return errorResponse(callID, err)
	}
	var result json.RawMessage
	if res.Payload != nil {
		data, err := json.Marshal(res.Payload)
		if err != nil {
			r.log.Errorf("marshal %s result: %v", cmd.CommandType(), err)
			return errorResponse(callID, err)
		}
		result = data
	}
	return Response{CallID: callID, OK: true, Result: result}
}

// join authorizes before the hub learns anything: a rejected caller
// never appears in the room, so no event can leak to them.
func (r *Router) join(ctx context.Context, client *Client, frame Frame) Response {
	room, err := r.roomFromParams(frame.Params)
	if err != nil {
		return errorResponse(frame.CallID, err)
	}

	allowed, err := r.authorizer.CanJoin(ctx, client.UserID, room)
	if err != nil {
		return errorResponse(frame.CallID, err)
	}
	if !allowed {
		return errorResponse(frame.CallID, chat_errors.ErrForbidden)
	}

	r.hub.Subscribe(client, room)
	result, _ := json.Marshal(joinResult{Room: room})
	return Response{CallID: frame.CallID, OK: true, Result: result}
}

func (r *Router) leave(client *Client, frame Frame) Response {
	room, err := r.roomFromParams(frame.Params)
	if err != nil {
		return errorResponse(frame.CallID, err)
	}
	r.hub.Unsubscribe(client, room)
	result, _ := json.Marshal(joinResult{Room: room})
	return Response{CallID: frame.CallID, OK: true, Result: result}
}

func (r *Router) roomFromParams(params json.RawMessage) (string, error) {
	var p roomParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", chat_errors.ErrInvalidInput
	}
	switch {
	case p.ConversationID != nil && *p.ConversationID != uuid.Nil:
		return events.RoomPrefixConversation + p.ConversationID.String(), nil
	case p.ChannelID != nil && *p.ChannelID != uuid.Nil:
		return events.RoomPrefixChannel + p.ChannelID.String(), nil
	default:
		return "", chat_errors.ErrInvalidInput
	}
}

func errorResponse(callID string, err error) Response {
	return Response{
		CallID: callID,
		OK:     false,
		Error: &ErrorBody{
			Code:    chat_errors.Code(err),
			Message: err.Error(),
		},
	}
}
