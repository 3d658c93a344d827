package safe

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog"
)

// Rollback rolls a transaction back in a defer, logging real failures.
// sql.ErrTxDone is ignored since it is the normal outcome after a commit.
func Rollback(tx *sql.Tx, logger zerolog.Logger) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("transaction rollback failed")
	}
}
