package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/saysophanna/babybear-backend/pkg/db/models"
	"github.com/saysophanna/babybear-backend/pkg/logger"
)

const proofRetentionDays = 7

type staleProofRepo interface {
	ListUnlinkedBefore(ctx context.Context, cutoff time.Time) ([]models.PaymentProof, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type proofFileRemover interface {
	Remove(key string) error
}

// ProofCleanupJobParams configure the stale proof sweeper.
type ProofCleanupJobParams struct {
	Logger        *logger.Logger
	Repo          staleProofRepo
	Files         proofFileRemover
	PublicBase    string
	RetentionDays int
}

// NewProofCleanupJob builds the job that removes transfer slips never
// linked to an order.
func NewProofCleanupJob(params ProofCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("proof repository required")
	}
	if params.Files == nil {
		return nil, fmt.Errorf("file remover required")
	}
	if params.PublicBase == "" {
		return nil, fmt.Errorf("public base path required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = proofRetentionDays
	}
	return &proofCleanupJob{
		logg:          params.Logger,
		repo:          params.Repo,
		files:         params.Files,
		publicBase:    params.PublicBase,
		retentionDays: retention,
		now:           time.Now,
	}, nil
}

type proofCleanupJob struct {
	logg          *logger.Logger
	repo          staleProofRepo
	files         proofFileRemover
	publicBase    string
	retentionDays int
	now           func() time.Time
}

func (j *proofCleanupJob) Name() string { return "proof-cleanup" }

func (j *proofCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retentionDays) * 24 * time.Hour)
	rows, err := j.repo.ListUnlinkedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale proofs: %w", err)
	}

	// One broken proof must not stop the sweep; failures are combined
	// and reported at the end.
	var errs []error
	deleted := 0
	for _, proof := range rows {
		if err := j.removeProof(ctx, proof); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"deleted":    deleted,
	})
	j.logg.Info(logCtx, "stale proof sweep complete")
	return multierr.Combine(errs...)
}

func (j *proofCleanupJob) removeProof(ctx context.Context, proof models.PaymentProof) error {
	key := strings.TrimPrefix(proof.URL, j.publicBase+"/")
	if err := j.files.Remove(key); err != nil {
		return fmt.Errorf("remove proof file %s: %w", proof.ID, err)
	}
	if err := j.repo.Delete(ctx, proof.ID); err != nil {
		return fmt.Errorf("delete proof row %s: %w", proof.ID, err)
	}
	return nil
}
