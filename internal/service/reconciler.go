package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/config"
	"github.com/iliyamo/fleet-ledger/internal/finance"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Reconciler keeps a journey's cached TotalExpenses and Balance in step
// with its expenses.  It is the only code path that writes those fields.
type Reconciler struct {
	store  ledger.Store
	logger logrus.FieldLogger
}

func NewReconciler(store ledger.Store, logger logrus.FieldLogger) *Reconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reconciler{store: store, logger: logger}
}

// Recompute re-derives the journey's totals in its own transaction and
// returns the updated journey.  Running it twice changes nothing.
func (r *Reconciler) Recompute(ctx context.Context, journeyID uint64) (*model.Journey, error) {
	var out *model.Journey
	err := r.store.WithinTx(ctx, func(tx ledger.Store) error {
		j, err := r.RecomputeTx(ctx, tx, journeyID)
		out = j
		return err
	})
	if err != nil {
		config.LogError(r.logger, "service", "Recompute", "recompute journey", logrus.Fields{"journey_id": journeyID}, err)
		return nil, err
	}
	return out, nil
}

// RecomputeTx is Recompute inside the caller's transaction.  The journey
// row is locked first so concurrent mutations of the same journey
// serialize on it.  Errors are returned unlogged; the caller logs them.
func (r *Reconciler) RecomputeTx(ctx context.Context, tx ledger.Store, journeyID uint64) (*model.Journey, error) {
	j, err := tx.LockJourney(ctx, journeyID)
	if err != nil {
		return nil, apperr.FromStore("lock journey", "journey", err)
	}
	expenses, err := tx.ListExpenses(ctx, journeyID)
	if err != nil {
		return nil, apperr.Persistence("list expenses", err)
	}
	totals := finance.Reconcile(j.Pouch, expenses)
	if err := tx.SetJourneyTotals(ctx, journeyID, totals.TotalExpenses, totals.Balance); err != nil {
		return nil, apperr.FromStore("write totals", "journey", err)
	}
	totals.Apply(j)
	r.logger.WithFields(logrus.Fields{
		"journey_id":     journeyID,
		"total_expenses": totals.TotalExpenses.StringFixed(2),
		"balance":        totals.Balance.StringFixed(2),
	}).Debug("journey reconciled")
	return j, nil
}
