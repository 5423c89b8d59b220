package scheduler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/database"
	"github.com/pastolab/herdtrack/internal/modules/farms"
	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/pkg/temporal"
)

// HerdAuditJob runs the nightly data integrity audit: database-level
// consistency checks plus a full snapshot recomputation for every farm,
// logging anything a day of data entry may have broken.
type HerdAuditJob struct {
	validator *database.HerdValidator
	farms     *farms.Repository
	stock     *herd.Service
	log       zerolog.Logger
}

// NewHerdAuditJob creates a new herd audit job
func NewHerdAuditJob(validator *database.HerdValidator, farmRepo *farms.Repository, stock *herd.Service, log zerolog.Logger) *HerdAuditJob {
	return &HerdAuditJob{
		validator: validator,
		farms:     farmRepo,
		stock:     stock,
		log:       log.With().Str("job", "herd_audit").Logger(),
	}
}

// Name returns the job name
func (j *HerdAuditJob) Name() string {
	return "herd-integrity-audit"
}

// Run executes the audit. Findings are logged, not returned: a dirty herd
// is an operational signal, not a job failure.
func (j *HerdAuditJob) Run() error {
	runID := uuid.New().String()
	log := j.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("Herd audit started")

	result, err := j.validator.ValidateAll()
	if err != nil {
		return fmt.Errorf("integrity checks failed to run: %w", err)
	}
	if !result.IsValid {
		log.Warn().
			Strs("missing_ear_tags", result.MissingEarTags).
			Strs("conflicting_exits", result.ConflictingExits).
			Strs("early_weightings", result.EarlyWeightings).
			Msg("Integrity checks found problems")
	}

	farmList, err := j.farms.List()
	if err != nil {
		return fmt.Errorf("failed to list farms: %w", err)
	}

	asOf := temporal.Today()
	var snapshots, failures, warnings int
	for _, farm := range farmList {
		batch, err := j.stock.Snapshots(farm.ID, asOf)
		if err != nil {
			log.Error().Err(err).Int64("farm_id", farm.ID).Msg("Snapshot recomputation failed")
			continue
		}
		snapshots += len(batch.Snapshots)
		failures += len(batch.Failures)
		for _, snap := range batch.Snapshots {
			warnings += len(snap.Warnings)
			for _, warning := range snap.Warnings {
				log.Warn().
					Int64("farm_id", farm.ID).
					Str("ear_tag", snap.EarTag).
					Str("code", string(warning.Code)).
					Str("message", warning.Message).
					Msg("Snapshot warning")
			}
		}
	}

	log.Info().
		Int("farms", len(farmList)).
		Int("snapshots", snapshots).
		Int("failures", failures).
		Int("warnings", warnings).
		Bool("integrity_ok", result.IsValid).
		Msg("Herd audit finished")
	return nil
}
