package stat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-idp-services/directory"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	AttrStatNodeID = "statNodeId"
	AttrRevision   = "revision"
)

var ErrNodeIDUnavailable = errors.New("stat: node id is unavailable")

// NodeIDResolver yields the stable node id. A configured id wins; otherwise
// the id is read from the dynamic configuration entry, or generated and
// written back with a bumped revision. A failed write disables the node id
// for the lifetime of the resolver.
type NodeIDResolver struct {
	store           directory.Store
	configurationDN string
	configured      string
	logger          glog.Logger

	mu       sync.Mutex
	nodeID   string
	disabled bool
}

func NewNodeIDResolver(store directory.Store, configurationDN string, configured string, logger glog.Logger) *NodeIDResolver {
	return &NodeIDResolver{
		store:           store,
		configurationDN: strings.TrimSpace(configurationDN),
		configured:      strings.TrimSpace(configured),
		logger:          glog.Ensure(logger),
	}
}

func (r *NodeIDResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nodeID != "" {
		return r.nodeID, nil
	}
	if r.disabled {
		return "", ErrNodeIDUnavailable
	}
	if r.configured != "" {
		r.nodeID = r.configured
		return r.nodeID, nil
	}
	if r.store == nil || r.configurationDN == "" {
		return "", fmt.Errorf("%w: configuration dn is not set", ErrNodeIDUnavailable)
	}

	conf, err := r.store.Find(ctx, r.configurationDN)
	if err != nil {
		return "", fmt.Errorf("stat: load configuration entry: %w", err)
	}
	if existing := strings.TrimSpace(conf.Get(AttrStatNodeID)); existing != "" {
		r.nodeID = existing
		return r.nodeID, nil
	}

	generated := uuid.NewString()
	revision, _ := strconv.Atoi(conf.Get(AttrRevision))
	conf.Set(AttrStatNodeID, generated)
	conf.Set(AttrRevision, strconv.Itoa(revision+1))
	if err := r.store.Merge(ctx, conf); err != nil {
		r.disabled = true
		r.logger.Error("failed to update statNodeId", "error", err)
		return "", fmt.Errorf("%w: %v", ErrNodeIDUnavailable, err)
	}
	r.nodeID = generated
	r.logger.Info("updated statNodeId", "node_id", generated, "revision", revision+1)
	return r.nodeID, nil
}
