package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	idpcommand "github.com/goliatone/go-idp-services/command"
	"github.com/goliatone/go-idp-services/core"
	"github.com/goliatone/go-idp-services/pairwise"
	idpquery "github.com/goliatone/go-idp-services/query"
	"github.com/goliatone/go-idp-services/stat"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract checks Type() and, when present, Validate().
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterService registers every command and query handler backed by svc and
// subscribes them to the go-command dispatcher. On failure the subscriptions
// made so far are removed.
func RegisterService(
	adapter *RegistryAdapter,
	svc *core.Service,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if svc == nil {
		return nil, fmt.Errorf("gocommand: service is required")
	}
	subscriptions := make([]commanddispatcher.Subscription, 0, 7)
	rollback := func(err error) ([]commanddispatcher.Subscription, error) {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	keep := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if err := keep(RegisterAndSubscribe[idpcommand.RecordActiveUserMessage](
		adapter, idpcommand.NewRecordActiveUserCommand(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	if err := keep(RegisterAndSubscribe[idpcommand.RecordTokenIssuedMessage](
		adapter, idpcommand.NewRecordTokenIssuedCommand(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	if err := keep(RegisterAndSubscribe[idpcommand.FlushStatsMessage](
		adapter, idpcommand.NewFlushStatsCommand(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	if err := keep(RegisterAndSubscribe[idpcommand.CreatePairwiseMessage](
		adapter, idpcommand.NewCreatePairwiseCommand(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	if err := keep(RegisterAndSubscribe[idpcommand.ResolveOrCreatePairwiseMessage](
		adapter, idpcommand.NewResolveOrCreatePairwiseCommand(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	if err := keep(RegisterAndSubscribeQuery[idpquery.ResolvePairwiseMessage, pairwise.Identifier](
		adapter, idpquery.NewResolvePairwiseQuery(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	if err := keep(RegisterAndSubscribeQuery[idpquery.StatReportMessage, stat.MonthlyReport](
		adapter, idpquery.NewStatReportQuery(svc), runnerOpts...)); err != nil {
		return rollback(err)
	}
	return subscriptions, nil
}
