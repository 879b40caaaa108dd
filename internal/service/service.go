// Package service orchestrates ledger operations: it checks who may do
// what, validates input before touching the store, runs every mutation
// and its reconciliation in one transaction, and publishes ledger events
// once the transaction has committed.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/apperr"
	"github.com/iliyamo/fleet-ledger/internal/config"
	"github.com/iliyamo/fleet-ledger/internal/ledger"
	"github.com/iliyamo/fleet-ledger/internal/model"
)

// Actor is the authenticated caller, as established by the auth layer.
type Actor struct {
	UserID uint64
	Role   model.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// requireAdmin rejects non-admin actors before anything is read or
// written.
func (a Actor) requireAdmin(action string) error {
	if !a.IsAdmin() {
		return apperr.Forbidden("only admins may " + action)
	}
	return nil
}

// CacheInvalidator drops cached fleet reference data.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps are the collaborators shared by every service.  Events and Cache
// are optional.
type Deps struct {
	Store  ledger.Store
	Logger logrus.FieldLogger
	Events EventPublisher
	Cache  CacheInvalidator
	Now    func() time.Time
}

type base struct {
	store  ledger.Store
	logger logrus.FieldLogger
	events events
	cache  CacheInvalidator
	now    func() time.Time
}

func newBase(d Deps) base {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return base{
		store:  d.Store,
		logger: logger,
		events: events{pub: d.Events, logger: logger, now: now},
		cache:  d.Cache,
		now:    func() time.Time { return now().UTC() },
	}
}

// invalidate drops cached vehicle data after a committed status change.
func (b base) invalidate(ctx context.Context, funcName string) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Invalidate(ctx); err != nil {
		config.LogError(b.logger, "service", funcName, "invalidate vehicle cache", nil, err)
	}
}

// fail logs unexpected store failures.  Domain errors pass through
// quietly.
func (b base) fail(funcName, what string, data any, err error) error {
	if apperr.KindOf(err) == apperr.KindPersistence {
		config.LogError(b.logger, "service", funcName, what, data, err)
	}
	return err
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
