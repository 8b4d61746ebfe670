package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[PublishMessage]            = (*PublishCommand)(nil)
	_ gocmd.Commander[ResolveAllMessage]         = (*ResolveAllCommand)(nil)
	_ gocmd.Commander[ResolveSinceMessage]       = (*ResolveSinceCommand)(nil)
	_ gocmd.Commander[ResolveImmediatelyMessage] = (*ResolveImmediatelyCommand)(nil)
)
