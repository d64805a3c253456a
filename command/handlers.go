package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-idp-services/pairwise"
)

type StatRecorder interface {
	RecordActiveUser(ctx context.Context, userID string)
	RecordTokenIssued(ctx context.Context, grantType string, tokenKind string)
	Flush(ctx context.Context) error
}

type PairwiseMutator interface {
	CreatePairwise(ctx context.Context, userID string, identifier pairwise.Identifier) (pairwise.Identifier, error)
	ResolveOrCreatePairwise(
		ctx context.Context,
		userID string,
		sectorIdentifierURI string,
		clientID string,
	) (pairwise.Identifier, error)
}

type RecordActiveUserCommand struct {
	service StatRecorder
}

func NewRecordActiveUserCommand(service StatRecorder) *RecordActiveUserCommand {
	return &RecordActiveUserCommand{service: service}
}

func (c *RecordActiveUserCommand) Execute(ctx context.Context, msg RecordActiveUserMessage) error {
	if c == nil || c.service == nil {
		return missingService("stat service")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	c.service.RecordActiveUser(ctx, msg.UserID)
	return nil
}

type RecordTokenIssuedCommand struct {
	service StatRecorder
}

func NewRecordTokenIssuedCommand(service StatRecorder) *RecordTokenIssuedCommand {
	return &RecordTokenIssuedCommand{service: service}
}

func (c *RecordTokenIssuedCommand) Execute(ctx context.Context, msg RecordTokenIssuedMessage) error {
	if c == nil || c.service == nil {
		return missingService("stat service")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	c.service.RecordTokenIssued(ctx, msg.GrantType, msg.TokenKind)
	return nil
}

type FlushStatsCommand struct {
	service StatRecorder
}

func NewFlushStatsCommand(service StatRecorder) *FlushStatsCommand {
	return &FlushStatsCommand{service: service}
}

func (c *FlushStatsCommand) Execute(ctx context.Context, _ FlushStatsMessage) error {
	if c == nil || c.service == nil {
		return missingService("stat service")
	}
	return serviceFailure(c.service.Flush(ctx))
}

type CreatePairwiseCommand struct {
	service PairwiseMutator
}

func NewCreatePairwiseCommand(service PairwiseMutator) *CreatePairwiseCommand {
	return &CreatePairwiseCommand{service: service}
}

func (c *CreatePairwiseCommand) Execute(ctx context.Context, msg CreatePairwiseMessage) error {
	if c == nil || c.service == nil {
		return missingService("pairwise service")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	identifier, err := msg.Identifier()
	if err != nil {
		return err
	}
	out, err := c.service.CreatePairwise(ctx, msg.UserID, identifier)
	if err != nil {
		return serviceFailure(err)
	}
	storeResult(ctx, out)
	return nil
}

type ResolveOrCreatePairwiseCommand struct {
	service PairwiseMutator
}

func NewResolveOrCreatePairwiseCommand(service PairwiseMutator) *ResolveOrCreatePairwiseCommand {
	return &ResolveOrCreatePairwiseCommand{service: service}
}

func (c *ResolveOrCreatePairwiseCommand) Execute(ctx context.Context, msg ResolveOrCreatePairwiseMessage) error {
	if c == nil || c.service == nil {
		return missingService("pairwise service")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.ResolveOrCreatePairwise(ctx, msg.UserID, msg.SectorIdentifierURI, msg.ClientID)
	if err != nil {
		return serviceFailure(err)
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
