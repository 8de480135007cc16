package service

import (
	"log"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

const (
	DefaultAutoCheckoutInterval  = 15 * time.Minute
	DefaultAutoCheckoutThreshold = 4 * time.Hour
	DefaultPenaltyInterval       = 24 * time.Hour
	DefaultResetInterval         = 30 * time.Minute
)

// DefaultPenalty is charged once per overdue task per calendar day.
var DefaultPenalty = decimal.New(-1, -1)

// AutoCheckoutConfig holds the dependencies of an AutoCheckout worker.
type AutoCheckoutConfig struct {
	Store   store.Store
	Clock   clock.Clock
	Logger  *log.Logger
	Metrics *Metrics

	// Threshold is how long a session may stay open.  A stale session is
	// closed at entry + Threshold.
	Threshold time.Duration
}

// Validate returns an error if the config cannot drive a worker.
func (c AutoCheckoutConfig) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.Threshold <= 0 {
		return errors.NotValidf("non-positive Threshold")
	}
	return nil
}

func NewAutoCheckout(cfg AutoCheckoutConfig) (*AutoCheckout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &AutoCheckout{config: cfg}, nil
}

// DeadlinePenaltyConfig holds the dependencies of a DeadlinePenalty worker.
type DeadlinePenaltyConfig struct {
	Store   store.Store
	Ledger  *LedgerService
	Clock   clock.Clock
	Logger  *log.Logger
	Metrics *Metrics

	// Location decides which calendar day a penalty belongs to.
	Location *time.Location

	// Penalty is the signed amount charged, so it must be negative.
	Penalty decimal.Decimal
}

func (c DeadlinePenaltyConfig) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Ledger == nil {
		return errors.NotValidf("nil Ledger")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.Location == nil {
		return errors.NotValidf("nil Location")
	}
	if !c.Penalty.IsNegative() {
		return errors.NotValidf("non-negative Penalty %s", c.Penalty)
	}
	return nil
}

func NewDeadlinePenalty(cfg DeadlinePenaltyConfig) (*DeadlinePenalty, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &DeadlinePenalty{config: cfg}, nil
}

// MonthlyResetConfig holds the dependencies of a MonthlyReset worker.
type MonthlyResetConfig struct {
	Store   store.Store
	Clock   clock.Clock
	Logger  *log.Logger
	Metrics *Metrics

	// Location decides when the first of the month begins.
	Location *time.Location
}

func (c MonthlyResetConfig) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.Location == nil {
		return errors.NotValidf("nil Location")
	}
	return nil
}

func NewMonthlyReset(cfg MonthlyResetConfig) (*MonthlyReset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &MonthlyReset{config: cfg}, nil
}
