package mocks

import (
	"context"
	"sync"
)

// CommandBus records sent commands. Err, when set, is returned instead.
type CommandBus struct {
	mu sync.Mutex

	Commands []any
	Err      error
}

func (b *CommandBus) Send(ctx context.Context, cmd any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Err != nil {
		return b.Err
	}
	b.Commands = append(b.Commands, cmd)

	return nil
}

func (b *CommandBus) Sent() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]any(nil), b.Commands...)
}

type EventBus struct {
	mu sync.Mutex

	Events []any
	Err    error
}

func (b *EventBus) Publish(ctx context.Context, event any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Err != nil {
		return b.Err
	}
	b.Events = append(b.Events, event)

	return nil
}

func (b *EventBus) Published() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]any(nil), b.Events...)
}
