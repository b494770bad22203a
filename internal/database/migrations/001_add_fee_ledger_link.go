package migrations

import (
	"github.com/ksred/fundledger/internal/fees"
	"gorm.io/gorm"
)

// AddFeeLedgerLink migrates the trading fee schema, adding the
// ledger_entry_id reference that replaced the time-window staleness
// match for fees applied after the link existed.
func AddFeeLedgerLink(db *gorm.DB) error {
	return db.AutoMigrate(&fees.TradingFee{})
}
