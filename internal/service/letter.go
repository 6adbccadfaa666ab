package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Letter IDs are human-legible references of the form DHQ/ACC/<year>/<nnnn>.
// The counter is count-based (existing requests created this year + 1), which
// makes the ID advisory/display-only: two simultaneous creates could compute
// the same number. The generator therefore checks for an existing row and
// falls back to a timestamp-suffixed ID; nothing in the workflow relies on
// letter-ID uniqueness for correctness.

const letterPrefix = "DHQ/ACC"

// FormatLetterID renders the count-based letter reference for a year.
func FormatLetterID(year, n int) string {
	return fmt.Sprintf("%s/%d/%04d", letterPrefix, year, n)
}

// FallbackLetterID renders the collision fallback: the last four digits of
// the current epoch milliseconds in place of the counter.
func FallbackLetterID(t time.Time) string {
	return fmt.Sprintf("%s/%d/%04d", letterPrefix, t.Year(), t.UnixMilli()%10000)
}

// generateLetterIDTx produces the next letter ID inside the caller's
// transaction, falling back on collision.
func (s *AllocationService) generateLetterIDTx(ctx context.Context, tx *sql.Tx, now time.Time) (string, error) {
	count, err := s.requests.CountCreatedInYearTx(ctx, tx, now.Year())
	if err != nil {
		return "", err
	}
	id := FormatLetterID(now.Year(), count+1)
	exists, err := s.requests.LetterIDExistsTx(ctx, tx, id)
	if err != nil {
		return "", err
	}
	if exists {
		id = FallbackLetterID(now)
	}
	return id, nil
}

// GenerateLetterID produces a letter ID in its own transaction for callers
// that want to preview or pre-assign a reference. Best-effort only.
func (s *AllocationService) GenerateLetterID(ctx context.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	id, err := s.generateLetterIDTx(ctx, tx, s.now())
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return id, nil
}
