package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/modules/market"
)

// PriceReloadJob re-reads the historical market price file so that edits
// to the CSV show up without a restart.
type PriceReloadJob struct {
	store *market.Store
	log   zerolog.Logger
}

// NewPriceReloadJob creates a new price reload job
func NewPriceReloadJob(store *market.Store, log zerolog.Logger) *PriceReloadJob {
	return &PriceReloadJob{
		store: store,
		log:   log.With().Str("job", "price_reload").Logger(),
	}
}

// Name returns the job name
func (j *PriceReloadJob) Name() string {
	return "market-price-reload"
}

// Run reloads the price series.
func (j *PriceReloadJob) Run() error {
	if err := j.store.Load(); err != nil {
		return err
	}
	j.log.Info().Int("records", j.store.Len()).Msg("Market prices reloaded")
	return nil
}
