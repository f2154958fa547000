package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/events"
	"campuschat/internal/repository"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// MessageService is the command handler for everything that mutates a
// message. All mutations for one conversation run under that
// conversation's lock; the lock is released before any event is
// published so broadcast latency cannot starve other writers.
type MessageService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	publisher     events.Publisher
	locks         *keyedMutex
	log           *logger.Logger
}

func NewMessageService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	publisher events.Publisher,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		locks:         newKeyedMutex(),
		log:           log,
	}
}

// RegisterHandlers wires the message commands onto the bus.
func (s *MessageService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.SendMessageCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.SendMessageCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.Send(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.EditMessageCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.EditMessageCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.Edit(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.DeleteMessageCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.DeleteMessageCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		if err := s.Delete(ctx, typed); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: typed.MessageID.String()}, nil
	}))
	bus.Register(commands.ToggleReactionCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.ToggleReactionCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.ToggleReaction(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.MarkReadCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.MarkReadCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		if err := s.MarkRead(ctx, typed); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: typed.MessageID.String()}, nil
	}))
	bus.Register(commands.TypingCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.TypingCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		if err := s.Typing(ctx, typed); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: typed.ConversationID.String()}, nil
	}))
}

// Send validates, persists and fans out a new message. The conversation
// is the serialization unit: the sender must be a current participant at
// send time, and the conversation's last-message timestamp advances
// monotonically with the new message.
func (s *MessageService) Send(ctx context.Context, cmd commands.SendMessageCommand) (httpdto.MessagePayload, error) {
	if err := cmd.Validate(); err != nil {
		return httpdto.MessagePayload{}, err
	}

	s.locks.Lock(cmd.ConversationID)
	msg, err := s.sendLocked(ctx, cmd)
	s.locks.Unlock(cmd.ConversationID)
	if err != nil {
		return httpdto.MessagePayload{}, err
	}

	payload := httpdto.FromMessage(msg)
	s.publish(ctx, events.EventReceiveMessage, conversationRoom(cmd.ConversationID), cmd.Origin, payload)
	return payload, nil
}

func (s *MessageService) sendLocked(ctx context.Context, cmd commands.SendMessageCommand) (*domain.Message, error) {
	conv, err := s.conversations.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return nil, err
	}

	var replyTo *domain.Message
	if cmd.ReplyToMessageID != nil {
		replyTo, err = s.messages.GetByID(ctx, *cmd.ReplyToMessageID)
		if err != nil {
			return nil, chat_errors.ErrReplyWrongConversation
		}
	}

	msg, err := domain.NewMessage(conv, cmd.SenderID, cmd.Content, cmd.Attachments, replyTo)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	conv.TouchLastMessage(msg.SentAt)
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) Edit(ctx context.Context, cmd commands.EditMessageCommand) (httpdto.MessagePayload, error) {
	if err := cmd.Validate(); err != nil {
		return httpdto.MessagePayload{}, err
	}

	msg, err := s.withMessage(ctx, cmd.MessageID, cmd.EditorID, func(m *domain.Message) error {
		if m.SenderID != cmd.EditorID {
			return chat_errors.ErrForbidden
		}
		return m.Edit(cmd.Content)
	})
	if err != nil {
		return httpdto.MessagePayload{}, err
	}

	payload := httpdto.FromMessage(msg)
	s.publish(ctx, events.EventMessageEdited, conversationRoom(msg.ConversationID), cmd.Origin, payload)
	return payload, nil
}

func (s *MessageService) Delete(ctx context.Context, cmd commands.DeleteMessageCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	msg, err := s.withMessage(ctx, cmd.MessageID, cmd.UserID, func(m *domain.Message) error {
		if m.SenderID != cmd.UserID {
			return chat_errors.ErrForbidden
		}
		return m.Delete()
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.EventMessageDeleted, conversationRoom(msg.ConversationID), cmd.Origin, httpdto.MessageDeletedPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		DeletedAt:      *msg.DeletedAt,
	})
	return nil
}

// ToggleReaction serves both AddReaction and RemoveReaction. A retry of
// either direction is a no-op: the event fires only when state changed.
func (s *MessageService) ToggleReaction(ctx context.Context, cmd commands.ToggleReactionCommand) (httpdto.MessagePayload, error) {
	if err := cmd.Validate(); err != nil {
		return httpdto.MessagePayload{}, err
	}

	changed := false
	msg, err := s.withMessage(ctx, cmd.MessageID, cmd.UserID, func(m *domain.Message) error {
		if m.HasReaction(cmd.UserID, cmd.Emoji) == cmd.Add {
			return nil // already in the desired state
		}
		now, err := m.ToggleReaction(cmd.UserID, cmd.Emoji)
		if err != nil {
			return err
		}
		changed = now == cmd.Add
		return nil
	})
	if err != nil {
		return httpdto.MessagePayload{}, err
	}

	if changed {
		event := events.EventReactionAdded
		if !cmd.Add {
			event = events.EventReactionRemoved
		}
		s.publish(ctx, event, conversationRoom(msg.ConversationID), cmd.Origin, httpdto.ReactionPayload{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			UserID:         cmd.UserID,
			Emoji:          cmd.Emoji,
			Count:          msg.Reactions.Count(cmd.Emoji),
		})
	}
	return httpdto.FromMessage(msg), nil
}

// MarkRead records the first read. Re-reads never move the stored
// timestamp and never re-broadcast.
func (s *MessageService) MarkRead(ctx context.Context, cmd commands.MarkReadCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	readAt := cmd.ReadAt
	if readAt.IsZero() {
		readAt = time.Now()
	}

	inserted := false
	msg, err := s.withMessage(ctx, cmd.MessageID, cmd.UserID, func(m *domain.Message) error {
		inserted = m.MarkRead(cmd.UserID, readAt)
		return nil
	})
	if err != nil {
		return err
	}

	if inserted {
		s.publish(ctx, events.EventMessageRead, conversationRoom(msg.ConversationID), cmd.Origin, httpdto.ReadPayload{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			UserID:         cmd.UserID,
			ReadAt:         msg.ReadReceipts[cmd.UserID],
		})
	}
	return nil
}

// Typing is transient: nothing is persisted, the indicator only fans out
// to the room after a participant check.
func (s *MessageService) Typing(ctx context.Context, cmd commands.TypingCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	ok, err := s.conversations.IsParticipant(ctx, cmd.ConversationID, cmd.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return chat_errors.ErrNotParticipant
	}
	s.publish(ctx, events.EventUserTyping, conversationRoom(cmd.ConversationID), cmd.Origin, httpdto.TypingPayload{
		ConversationID: cmd.ConversationID,
		UserID:         cmd.UserID,
		IsTyping:       cmd.IsTyping,
	})
	return nil
}

// History pages backwards through a conversation for the initial load.
func (s *MessageService) History(ctx context.Context, conversationID, userID uuid.UUID, beforeSeq int64, limit int) ([]httpdto.MessagePayload, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.messages.ListBeforeSeq(ctx, conversationID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	return toPayloads(msgs), nil
}

// Resync returns everything newer than the caller's last known sequence,
// closing the gap left by a disconnect.
func (s *MessageService) Resync(ctx context.Context, conversationID, userID uuid.UUID, afterSeq int64, limit int) ([]httpdto.MessagePayload, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	msgs, err := s.messages.ListAfterSeq(ctx, conversationID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	return toPayloads(msgs), nil
}

// withMessage loads the message to find its conversation, verifies the
// actor belongs to it, then redoes the load under that conversation's
// lock before mutating and saving.
func (s *MessageService) withMessage(ctx context.Context, messageID, actorID uuid.UUID, mutate func(m *domain.Message) error) (*domain.Message, error) {
	probe, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, probe.ConversationID, actorID); err != nil {
		return nil, err
	}

	s.locks.Lock(probe.ConversationID)
	defer s.locks.Unlock(probe.ConversationID)

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := mutate(msg); err != nil {
		return nil, err
	}
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return chat_errors.ErrNotParticipant
	}
	return nil
}

func (s *MessageService) publish(ctx context.Context, event, room string, origin commands.Origin, payload any) {
	env, err := events.NewEnvelope(event, room, payload)
	if err != nil {
		s.log.Errorf("marshal %s envelope: %v", event, err)
		return
	}
	env.Origin = origin.ConnectionID
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.log.Errorf("publish %s to %s: %v", event, room, err)
	}
}

func toPayloads(msgs []*domain.Message) []httpdto.MessagePayload {
	out := make([]httpdto.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, httpdto.FromMessage(m))
	}
	return out
}

func conversationRoom(id uuid.UUID) string {
	return events.RoomPrefixConversation + id.String()
}
