package commands

import (
	"context"
	"errors"
)

var ErrHandlerNotFound = errors.New("no handler registered for command")

// Command is one validated unit of work headed for a command handler.
// CommandType routes it on the bus; Validate rejects bad input shape
// before any aggregate is loaded.
type Command interface {
	CommandType() string
	Validate() error
}

// Result is what a handler returns to the RPC caller.
type Result struct {
	AggregateID string
	Payload     interface{}
}

type Handler interface {
	Handle(ctx context.Context, cmd Command) (Result, error)
}

type HandlerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}
