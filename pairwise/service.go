package pairwise

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-idp-services/directory"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Config struct {
	IDType          IDType
	CalculationKey  string
	CalculationSalt string
	// ShareSubjectIDBetweenClientsWithSameSectorID makes every client of a
	// sector see the same subject for a user.
	ShareSubjectIDBetweenClientsWithSameSectorID bool
}

type Option func(*Service)

func WithLogger(logger glog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithGenerator(generator Generator) Option {
	return func(s *Service) {
		s.generator = generator
	}
}

// WithIDGenerator overrides how ids of new persistent identifiers are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

type Service struct {
	store     directory.Store
	users     *UserService
	cfg       Config
	generator Generator
	logger    glog.Logger
	newID     func() string
}

func NewService(store directory.Store, users *UserService, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("pairwise: directory store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("pairwise: user service is required")
	}
	idType, err := ParseIDType(string(cfg.IDType))
	if err != nil {
		return nil, err
	}
	cfg.IDType = idType

	s := &Service{
		store:     store,
		users:     users,
		cfg:       cfg,
		generator: HMACGenerator{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = glog.Ensure(s.logger)
	if s.generator == nil {
		s.generator = HMACGenerator{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

var pairwiseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:go-idp-services:pairwise"))

func (s *Service) IDType() IDType {
	return s.cfg.IDType
}

// BaseDNForUser returns ou=pairwiseIdentifiers,<userDn>.
func (s *Service) BaseDNForUser(userID string) string {
	return directory.JoinDN(directory.AttrOU, branchName, s.users.DNForUser(userID))
}

func (s *Service) DNForIdentifier(id string, userID string) string {
	return directory.JoinDN(AttrID, strings.TrimSpace(id), s.BaseDNForUser(userID))
}

// EnsureUserBranch creates the pairwise branch of the user if missing.
func (s *Service) EnsureUserBranch(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	baseDN := s.BaseDNForUser(userID)
	if !s.store.HasBranchesSupport(baseDN) {
		return nil
	}
	if err := directory.EnsureBranch(ctx, s.store, baseDN, branchName); err != nil {
		return fmt.Errorf("pairwise: prepare user branch %s: %w", baseDN, err)
	}
	return nil
}

// Resolve finds or derives the pairwise identifier of the user for the
// sector. In PERSISTENT mode a miss yields ErrNotFound and the caller is
// expected to Create one.
func (s *Service) Resolve(ctx context.Context, userID string, sectorIdentifierURI string, clientID string) (Identifier, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Identifier{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	clientID = strings.TrimSpace(clientID)

	if s.cfg.IDType == IDTypeAlgorithmic {
		sector, err := SectorKey(sectorIdentifierURI)
		if err != nil {
			return Identifier{}, err
		}
		return s.derive(userID, sectorIdentifierURI, sector, clientID)
	}
	host, err := SectorHost(sectorIdentifierURI)
	if err != nil {
		return Identifier{}, err
	}
	return s.find(ctx, userID, host, clientID)
}

func (s *Service) derive(userID string, sectorIdentifierURI string, host string, clientID string) (Identifier, error) {
	localAccountID := userID
	if !s.cfg.ShareSubjectIDBetweenClientsWithSameSectorID {
		localAccountID = userID + clientID
	}
	value, err := s.generator.Generate(sectorIdentifierURI, localAccountID, s.cfg.CalculationKey, s.cfg.CalculationSalt)
	if err != nil {
		return Identifier{}, fmt.Errorf("pairwise: generate identifier: %w", err)
	}
	return Identifier{
		ID:               value,
		SectorIdentifier: host,
		ClientID:         clientID,
		UserID:           userID,
	}, nil
}

func (s *Service) find(ctx context.Context, userID string, host string, clientID string) (Identifier, error) {
	if err := s.EnsureUserBranch(ctx, userID); err != nil {
		return Identifier{}, err
	}

	filter := directory.Equal(AttrSectorIdentifier, host)
	if !s.cfg.ShareSubjectIDBetweenClientsWithSameSectorID {
		filter = directory.And(filter, directory.Equal(AttrClientID, clientID))
	}
	baseDN := s.BaseDNForUser(userID)
	entries, err := s.store.FindAll(ctx, baseDN, ObjectClassIdentifier, filter)
	if err != nil {
		return Identifier{}, fmt.Errorf("pairwise: search %s: %w", baseDN, err)
	}
	if len(entries) == 0 {
		return Identifier{}, fmt.Errorf("%w: user %s sector %s", ErrNotFound, userID, host)
	}
	if len(entries) > 1 {
		s.logger.Error(
			"multiple pairwise identifiers found for one sector, using the first",
			"user_id", userID,
			"sector_identifier", host,
			"filter", directory.FilterString(filter),
			"count", len(entries),
		)
	}
	return IdentifierFromEntry(entries[0], userID), nil
}

// Create stores a persistent identifier for the user and records it on the
// user profile. A blank id is replaced by a generated one.
func (s *Service) Create(ctx context.Context, userID string, identifier Identifier) (Identifier, error) {
	if s.cfg.IDType != IDTypePersistent {
		return Identifier{}, fmt.Errorf("%w: create requires %s", ErrModeMismatch, IDTypePersistent)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Identifier{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(identifier.SectorIdentifier) == "" {
		return Identifier{}, fmt.Errorf("%w: sector identifier is required", ErrInvalidInput)
	}
	if strings.TrimSpace(identifier.ID) == "" {
		identifier.ID = s.newID()
	}
	identifier.UserID = userID
	identifier.DN = s.DNForIdentifier(identifier.ID, userID)

	if err := s.EnsureUserBranch(ctx, userID); err != nil {
		return Identifier{}, err
	}
	if err := s.store.Persist(ctx, identifier.ToEntry()); err != nil {
		return Identifier{}, fmt.Errorf("pairwise: persist identifier %s: %w", identifier.DN, err)
	}
	if err := s.users.AddUserAttribute(ctx, userID, AttrUserPPID, identifier.ID); err != nil {
		return Identifier{}, err
	}
	s.logger.Debug("created pairwise identifier", "user_id", userID, "sector_identifier", identifier.SectorIdentifier)
	return identifier, nil
}

// ResolveOrCreate resolves the identifier and, in PERSISTENT mode, creates
// one on a miss. The created id is derived from the user, sector and, when
// subjects are not shared, the client, so concurrent callers race on one DN
// and the losers resolve the winner's identifier.
func (s *Service) ResolveOrCreate(ctx context.Context, userID string, sectorIdentifierURI string, clientID string) (Identifier, error) {
	identifier, err := s.Resolve(ctx, userID, sectorIdentifierURI, clientID)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return identifier, err
	}
	fresh, err := NewIdentifier(sectorIdentifierURI, clientID, userID)
	if err != nil {
		return Identifier{}, err
	}
	fresh.ID = s.stableID(fresh)

	created, err := s.Create(ctx, userID, fresh)
	if errors.Is(err, directory.ErrAlreadyExists) {
		return s.Resolve(ctx, userID, sectorIdentifierURI, clientID)
	}
	return created, err
}

func (s *Service) stableID(identifier Identifier) string {
	name := identifier.UserID + "\x00" + identifier.SectorIdentifier
	if !s.cfg.ShareSubjectIDBetweenClientsWithSameSectorID {
		name += "\x00" + identifier.ClientID
	}
	return uuid.NewSHA1(pairwiseNamespace, []byte(name)).String()
}
