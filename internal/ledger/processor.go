package ledger

import (
	"context"
	"time"

	"github.com/ksred/fundledger/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Processor completes PENDING deposits once their effective time has
// passed, recalculating the affected portfolio. It is the only path
// that moves an entry from PENDING to COMPLETED.
type Processor struct {
	db           *Database
	processDelay time.Duration // Time between processing attempts
}

func NewProcessor(db *Database) *Processor {
	return &Processor{
		db:           db,
		processDelay: time.Minute,
	}
}

// Start begins the pending-entry processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "ledger_processor").Logger()
	logger.Info().Msg("starting pending entry processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down pending entry processor")
			return
		case <-ticker.C:
			if err := p.processPendingEntries(); err != nil {
				logger.Error().Err(err).Msg("failed to process pending entries")
			}
		}
	}
}

func (p *Processor) processPendingEntries() error {
	logger := log.With().Str("component", "ledger_processor").Logger()

	entries, err := p.db.GetPendingEntriesDue(time.Now())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	logger.Info().Int("pending_count", len(entries)).Msg("completing due pending entries")

	for _, entry := range entries {
		err := p.db.DB().Transaction(func(tx *gorm.DB) error {
			err := tx.Model(&types.LedgerEntry{}).
				Where("id = ? AND status = ?", entry.ID, types.EntryPending).
				Updates(map[string]interface{}{
					"status":     types.EntryCompleted,
					"updated_at": time.Now(),
				}).Error
			if err != nil {
				return err
			}

			_, err = Recalculate(tx, entry.InvestorID)
			return err
		})
		if err != nil {
			logger.Error().
				Err(err).
				Str("entry_id", entry.EntryID).
				Msg("failed to complete pending entry")
			continue
		}

		logger.Info().
			Str("entry_id", entry.EntryID).
			Str("investor_id", entry.InvestorID).
			Msg("pending entry completed")
	}

	return nil
}
