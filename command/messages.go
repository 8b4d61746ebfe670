package command

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/glyphgrid/sphere/linkrecord"
)

const (
	TypePublish            = "nsworker.command.publish"
	TypeResolveAll         = "nsworker.command.resolve_all"
	TypeResolveSince       = "nsworker.command.resolve_since"
	TypeResolveImmediately = "nsworker.command.resolve_immediately"
)

type PublishMessage struct {
	Record        linkrecord.LinkRecord
	EnforceExpiry bool
}

func (PublishMessage) Type() string { return TypePublish }

func (m PublishMessage) Validate() error {
	if strings.TrimSpace(m.Record.SphereIdentity()) == "" {
		return fmt.Errorf("command: link record is required")
	}
	return nil
}

type ResolveAllMessage struct {
	SphereAddr cid.Cid
	SigningKey ed25519.PrivateKey
}

func (ResolveAllMessage) Type() string { return TypeResolveAll }

func (m ResolveAllMessage) Validate() error {
	if m.SphereAddr == cid.Undef {
		return fmt.Errorf("command: sphere address is required")
	}
	return nil
}

type ResolveSinceMessage struct {
	SphereAddr cid.Cid
	Since      cid.Cid
	SigningKey ed25519.PrivateKey
}

func (ResolveSinceMessage) Type() string { return TypeResolveSince }

func (m ResolveSinceMessage) Validate() error {
	if m.SphereAddr == cid.Undef {
		return fmt.Errorf("command: sphere address is required")
	}
	if m.Since == cid.Undef {
		return fmt.Errorf("command: since revision is required")
	}
	return nil
}

type ResolveImmediatelyMessage struct {
	Name string
}

func (ResolveImmediatelyMessage) Type() string { return TypeResolveImmediately }

func (m ResolveImmediatelyMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: name is required")
	}
	return nil
}
