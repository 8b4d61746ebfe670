package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/glyphgrid/sphere/nsworker"
)

type PublishCommand struct {
	dispatcher nsworker.Dispatcher
}

func NewPublishCommand(dispatcher nsworker.Dispatcher) *PublishCommand {
	return &PublishCommand{dispatcher: dispatcher}
}

func (c *PublishCommand) Execute(ctx context.Context, msg PublishMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: nsworker dispatcher is required")
	}
	return c.dispatcher.Publish(ctx, msg.Record, msg.EnforceExpiry)
}

type ResolveAllCommand struct {
	dispatcher nsworker.Dispatcher
}

func NewResolveAllCommand(dispatcher nsworker.Dispatcher) *ResolveAllCommand {
	return &ResolveAllCommand{dispatcher: dispatcher}
}

func (c *ResolveAllCommand) Execute(ctx context.Context, msg ResolveAllMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: nsworker dispatcher is required")
	}
	return c.dispatcher.ResolveAll(ctx, msg.SphereAddr, msg.SigningKey)
}

type ResolveSinceCommand struct {
	dispatcher nsworker.Dispatcher
}

func NewResolveSinceCommand(dispatcher nsworker.Dispatcher) *ResolveSinceCommand {
	return &ResolveSinceCommand{dispatcher: dispatcher}
}

func (c *ResolveSinceCommand) Execute(ctx context.Context, msg ResolveSinceMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: nsworker dispatcher is required")
	}
	return c.dispatcher.ResolveSince(ctx, msg.SphereAddr, msg.Since, msg.SigningKey)
}

type ResolveImmediatelyCommand struct {
	dispatcher nsworker.Dispatcher
}

func NewResolveImmediatelyCommand(dispatcher nsworker.Dispatcher) *ResolveImmediatelyCommand {
	return &ResolveImmediatelyCommand{dispatcher: dispatcher}
}

func (c *ResolveImmediatelyCommand) Execute(ctx context.Context, msg ResolveImmediatelyMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: nsworker dispatcher is required")
	}
	result, err := c.dispatcher.ResolveImmediately(ctx, msg.Name)
	if err != nil {
		return err
	}
	storeResult(ctx, result)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
