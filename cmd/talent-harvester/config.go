// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/internal/harvest"
	"github.com/pdiddy/talent-harvester/internal/secrets"
	"github.com/pdiddy/talent-harvester/internal/store"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// bindFlags binds each viper key to the named flag of fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// loadConfig assembles the harvest configuration from flags, environment,
// config file and secrets, in that order of precedence.
func loadConfig() (types.HarvestConfig, error) {
	cfg := types.HarvestConfig{
		Catalog: types.CatalogConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("catalog.timeout"),
				UserAgent: viper.GetString("catalog.user_agent"),
			},
			BaseURL:           viper.GetString("catalog.base_url"),
			APIKey:            secretDefault(secrets.OpenAlexAPIKey, viper.GetString("catalog.api_key")),
			Email:             secretDefault(secrets.OpenAlexEmail, viper.GetString("catalog.email")),
			PerPage:           viper.GetInt("catalog.per_page"),
			RequestsPerSecond: viper.GetFloat64("catalog.requests_per_second"),
			CountriesURL:      viper.GetString("catalog.countries_url"),
		},
		Caps: types.CapsConfig{
			MaxGlobal:    viper.GetInt("caps.max_global"),
			MaxSession:   viper.GetInt("caps.max_session"),
			MaxPartition: viper.GetInt("caps.max_partition"),
		},
		DatabasePath:   viper.GetString("database_path"),
		KeywordsFile:   viper.GetString("keywords_file"),
		PageDelay:      viper.GetDuration("page_delay"),
		PartitionDelay: viper.GetDuration("partition_delay"),
		Workers:        viper.GetInt("workers"),
	}.WithDefaults()

	if cfg.Caps.MaxGlobal < 0 || cfg.Caps.MaxSession < 0 || cfg.Caps.MaxPartition < 0 {
		return cfg, fmt.Errorf("caps must not be negative")
	}
	if cfg.PageDelay < 0 || cfg.PartitionDelay < 0 {
		return cfg, fmt.Errorf("delays must not be negative")
	}
	return cfg, nil
}

// harvester bundles the components of one harvest process.
type harvester struct {
	cfg          types.HarvestConfig
	store        *store.Store
	admission    *harvest.Controller
	orchestrator *harvest.Orchestrator
}

// newHarvester opens the store and wires the catalog client, resolver,
// normalizer, walker and orchestrator. Progress is logged to w.
func newHarvester(cfg types.HarvestConfig, w io.Writer) (*harvester, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	client := catalog.NewClient(cfg.Catalog)
	resolver := harvest.NewResolver(st, catalog.NewCountryNamer(cfg.Catalog), w)
	normalizer := harvest.NewNormalizer(resolver, st, harvest.NewSlugAllocator(st, w))
	admission := harvest.NewController(cfg.Caps)
	walker := harvest.NewWalker(client, st, normalizer, admission, harvest.WalkerConfig{
		PerPage:   cfg.Catalog.PerPage,
		PageDelay: cfg.PageDelay,
	}, w)

	return &harvester{
		cfg:       cfg,
		store:     st,
		admission: admission,
		orchestrator: harvest.NewOrchestrator(client, st, resolver, walker, admission, harvest.OrchestratorConfig{
			Workers:        cfg.Workers,
			PartitionDelay: cfg.PartitionDelay,
			MaxPartition:   cfg.Caps.MaxPartition,
		}, w),
	}, nil
}

func (h *harvester) Close() error {
	return h.store.Close()
}
