package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

type StatConfig struct {
	NodeID string `koanf:"node_id" mapstructure:"node_id"`
	BaseDN string `koanf:"base_dn" mapstructure:"base_dn"`
	// FlushInterval is a Go duration string, for example "1m".
	FlushInterval string `koanf:"flush_interval" mapstructure:"flush_interval"`
}

type PairwiseConfig struct {
	IDType          string `koanf:"id_type" mapstructure:"id_type"`
	CalculationKey  string `koanf:"calculation_key" mapstructure:"calculation_key"`
	CalculationSalt string `koanf:"calculation_salt" mapstructure:"calculation_salt"`

	ShareSubjectIDBetweenClientsWithSameSectorID bool `koanf:"share_subject_id_between_clients_with_same_sector_id" mapstructure:"share_subject_id_between_clients_with_same_sector_id"`
}

type DirectoryConfig struct {
	ConfigurationDN string `koanf:"configuration_dn" mapstructure:"configuration_dn"`
	PeopleBaseDN    string `koanf:"people_base_dn" mapstructure:"people_base_dn"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Stat        StatConfig      `koanf:"stat" mapstructure:"stat"`
	Pairwise    PairwiseConfig  `koanf:"pairwise" mapstructure:"pairwise"`
	Directory   DirectoryConfig `koanf:"directory" mapstructure:"directory"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "idp-services",
		Stat: StatConfig{
			FlushInterval: stat.DefaultFlushInterval.String(),
		},
		Pairwise: PairwiseConfig{
			IDType: string(pairwise.IDTypePersistent),
		},
		Directory: DirectoryConfig{
			PeopleBaseDN: "ou=people,o=jans",
		},
	}
}

// Validate rejects configuration that can never work. A blank stat node id
// or base dn is tolerated here and reported by stat initialization instead.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if _, err := c.Stat.Interval(); err != nil {
		return err
	}
	idType, err := pairwise.ParseIDType(c.Pairwise.IDType)
	if err != nil {
		return fmt.Errorf("core: invalid pairwise.id_type: %w", err)
	}
	if idType == pairwise.IDTypeAlgorithmic && strings.TrimSpace(c.Pairwise.CalculationKey) == "" {
		return fmt.Errorf("core: pairwise.calculation_key is required for %s identifiers", idType)
	}
	if strings.TrimSpace(c.Directory.PeopleBaseDN) == "" {
		return fmt.Errorf("core: directory.people_base_dn is required")
	}
	return nil
}

// Interval parses FlushInterval. Blank selects the default cadence.
func (c StatConfig) Interval() (time.Duration, error) {
	raw := strings.TrimSpace(c.FlushInterval)
	if raw == "" {
		return stat.DefaultFlushInterval, nil
	}
	interval, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("core: invalid stat.flush_interval %q: %w", raw, err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("core: invalid stat.flush_interval %q: must be positive", raw)
	}
	return interval, nil
}

func (c Config) statConfig() stat.Config {
	return stat.Config{
		NodeID:          strings.TrimSpace(c.Stat.NodeID),
		BaseDN:          strings.TrimSpace(c.Stat.BaseDN),
		ConfigurationDN: strings.TrimSpace(c.Directory.ConfigurationDN),
	}
}

func (c Config) pairwiseConfig() pairwise.Config {
	return pairwise.Config{
		IDType:          pairwise.IDType(c.Pairwise.IDType),
		CalculationKey:  c.Pairwise.CalculationKey,
		CalculationSalt: c.Pairwise.CalculationSalt,
		ShareSubjectIDBetweenClientsWithSameSectorID: c.Pairwise.ShareSubjectIDBetweenClientsWithSameSectorID,
	}
}
