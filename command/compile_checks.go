package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-idp-services/core"
)

var (
	_ gocmd.Commander[RecordActiveUserMessage]        = (*RecordActiveUserCommand)(nil)
	_ gocmd.Commander[RecordTokenIssuedMessage]       = (*RecordTokenIssuedCommand)(nil)
	_ gocmd.Commander[FlushStatsMessage]              = (*FlushStatsCommand)(nil)
	_ gocmd.Commander[CreatePairwiseMessage]          = (*CreatePairwiseCommand)(nil)
	_ gocmd.Commander[ResolveOrCreatePairwiseMessage] = (*ResolveOrCreatePairwiseCommand)(nil)

	_ StatRecorder    = (*core.Service)(nil)
	_ PairwiseMutator = (*core.Service)(nil)
)
