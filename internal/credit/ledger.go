// Package credit implements the credit ledger: unit cost resolution,
// affordability checks, and team-first balance deduction.
package credit

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
)

// maxDeductAttempts bounds retries when conditional updates lose races.
const maxDeductAttempts = 3

// errBalanceChanged signals a conditional update matched no rows because a
// concurrent transaction moved the balance first. Retryable.
var errBalanceChanged = errors.New("credit: balance changed concurrently")

// Ledger performs credit accounting against the database.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger bound to the given database handle.
func NewLedger(conn *gorm.DB) *Ledger {
	return &Ledger{db: conn}
}

// ResolveUnitCost returns the per-output credit cost for a model.
// Free models cost zero regardless of other pricing fields. A discount
// override, when present, replaces the base cost. Negative values are
// clamped to zero.
func ResolveUnitCost(model *models.ModelDefinition) int64 {
	if model == nil {
		return 0
	}
	if model.IsFreeToUse {
		return 0
	}
	if model.DiscountCreditCost != nil {
		if *model.DiscountCreditCost < 0 {
			return 0
		}
		return *model.DiscountCreditCost
	}
	if model.CreditsPerUse < 0 {
		return 0
	}
	return model.CreditsPerUse
}

// RequiredCredits returns the total cost of a request producing the given
// number of outputs. A non-positive output count is treated as one output.
func RequiredCredits(unitCost int64, outputCount int) int64 {
	count := int64(outputCount)
	if count < 1 {
		count = 1
	}
	return unitCost * count
}

// Balances holds the spendable credit pools visible to one authorization
// code. Negative stored balances are reported as zero.
type Balances struct {
	Personal int64
	Team     int64
}

// Total returns the combined spendable balance.
func (b Balances) Total() int64 {
	return b.Personal + b.Team
}

// BalancesOf computes spendable balances from a loaded code. The team pool
// is zero when the code has no team.
func BalancesOf(code *models.AuthCode) Balances {
	var b Balances
	if code == nil {
		return b
	}
	if code.Credits > 0 {
		b.Personal = code.Credits
	}
	if code.Team != nil && code.Team.Credits > 0 {
		b.Team = code.Team.Credits
	}
	return b
}

// Affordable reports whether the code's combined balances cover the
// required amount. Zero or negative requirements are always affordable.
func Affordable(code *models.AuthCode, required int64) bool {
	if required <= 0 {
		return true
	}
	return BalancesOf(code).Total() >= required
}

// DeductResult records how a completed deduction was split across pools.
type DeductResult struct {
	FromTeam     int64
	FromPersonal int64
}

// Deduct removes the required amount from the code's balances, team pool
// first, then personal. The whole deduction commits in one transaction or
// not at all. Balances are re-read under lock inside the transaction, so
// the caller's snapshot may be stale; the check inside the transaction is
// authoritative. Returns InsufficientCreditsError before any mutation when
// the pools cannot cover the amount, and ErrConcurrencyConflict when
// conditional updates keep losing races after retries.
func (l *Ledger) Deduct(ctx context.Context, codeID uint64, required int64, reason string) (DeductResult, error) {
	var result DeductResult
	if required <= 0 {
		return result, nil
	}

	for attempt := 1; attempt <= maxDeductAttempts; attempt++ {
		res, errAttempt := l.deductOnce(ctx, codeID, required, reason)
		if errAttempt == nil {
			return res, nil
		}
		if !errors.Is(errAttempt, errBalanceChanged) {
			return result, errAttempt
		}
		log.WithFields(log.Fields{
			"code_id": codeID,
			"attempt": attempt,
		}).Debug("credit: deduction lost a balance race, retrying")
	}
	return result, ErrConcurrencyConflict
}

func (l *Ledger) deductOnce(ctx context.Context, codeID uint64, required int64, reason string) (DeductResult, error) {
	var result DeductResult
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var code models.AuthCode
		if errFind := l.lockQuery(tx, ctx).
			Where("id = ?", codeID).
			First(&code).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return errFind
		}

		var team *models.Team
		if code.TeamID != nil {
			var row models.Team
			if errTeam := l.lockQuery(tx, ctx).
				Where("id = ?", *code.TeamID).
				First(&row).Error; errTeam != nil {
				if !errors.Is(errTeam, gorm.ErrRecordNotFound) {
					return errTeam
				}
			} else {
				team = &row
			}
		}

		personalAvail := code.Credits
		if personalAvail < 0 {
			personalAvail = 0
		}
		teamAvail := int64(0)
		if team != nil && team.Credits > 0 {
			teamAvail = team.Credits
		}

		if personalAvail+teamAvail < required {
			return &InsufficientCreditsError{
				Required:        required,
				TeamBalance:     teamAvail,
				PersonalBalance: personalAvail,
			}
		}

		fromTeam := teamAvail
		if fromTeam > required {
			fromTeam = required
		}
		fromPersonal := required - fromTeam
		if fromPersonal > personalAvail {
			// Unreachable after the combined check; kept so a split bug can
			// never drive a personal balance negative.
			return &InsufficientCreditsError{
				Required:        required,
				TeamBalance:     teamAvail,
				PersonalBalance: personalAvail,
			}
		}

		if fromTeam > 0 {
			resTeam := tx.WithContext(ctx).
				Model(&models.Team{}).
				Where("id = ? AND credits >= ?", *code.TeamID, fromTeam).
				Update("credits", gorm.Expr("credits - ?", fromTeam))
			if resTeam.Error != nil {
				return resTeam.Error
			}
			if resTeam.RowsAffected == 0 {
				return errBalanceChanged
			}
			adj := models.CreditAdjustment{
				AuthCode: code.Code,
				TeamID:   code.TeamID,
				Amount:   -fromTeam,
				Reason:   reason,
			}
			if errAdj := tx.WithContext(ctx).Create(&adj).Error; errAdj != nil {
				return errAdj
			}
		}

		if fromPersonal > 0 {
			resCode := tx.WithContext(ctx).
				Model(&models.AuthCode{}).
				Where("id = ? AND credits >= ?", code.ID, fromPersonal).
				Update("credits", gorm.Expr("credits - ?", fromPersonal))
			if resCode.Error != nil {
				return resCode.Error
			}
			if resCode.RowsAffected == 0 {
				return errBalanceChanged
			}
			adj := models.CreditAdjustment{
				AuthCode: code.Code,
				Amount:   -fromPersonal,
				Reason:   reason,
			}
			if errAdj := tx.WithContext(ctx).Create(&adj).Error; errAdj != nil {
				return errAdj
			}
		}

		result = DeductResult{FromTeam: fromTeam, FromPersonal: fromPersonal}
		return nil
	})
	if errTx != nil {
		return DeductResult{}, errTx
	}
	return result, nil
}

// lockQuery applies a row lock on dialects that support it. SQLite is a
// single-writer engine, so the conditional updates alone close the race
// there.
func (l *Ledger) lockQuery(tx *gorm.DB, ctx context.Context) *gorm.DB {
	q := tx.WithContext(ctx)
	if dbutil.IsSQLite(tx) {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
