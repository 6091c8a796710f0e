// Package history keeps parsed statements in memory for comparison across
// periods.
package history

import (
	"sort"
	"sync"
	"time"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/logger"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// Config holds store options.
type Config struct {
	// TTL expires statements after this long; zero keeps them forever.
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig keeps statements until the process exits.
func DefaultConfig() Config {
	return Config{CleanupInterval: 10 * time.Minute}
}

type entry struct {
	seq  uint64
	stmt *models.Statement
}

// Store is an in-memory statement history safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	cache  *cache.Cache
	ttl    time.Duration
	seq    uint64
	logger logger.Logger
}

// NewStore creates an empty history.
func NewStore(config Config) *Store {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Store{
		cache:  cache.New(ttl, config.CleanupInterval),
		ttl:    ttl,
		logger: logger.GetGlobalLogger().WithComponent("history"),
	}
}

// Add stores stmt, assigning an ID when it has none, and returns it.
func (s *Store) Add(stmt *models.Statement) *models.Statement {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt.ID == "" {
		stmt.ID = uuid.NewString()
	}
	s.seq++
	s.cache.Set(stmt.ID, entry{seq: s.seq, stmt: stmt}, s.ttl)

	s.logger.WithFields(logger.Fields{
		"id":     stmt.ID,
		"period": stmt.Period,
		"file":   stmt.FileName,
	}).Debug("Statement added to history")
	return stmt
}

// Get returns the statement with id.
func (s *Store) Get(id string) (*models.Statement, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(entry).stmt, true
}

// Delete removes a statement and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(id); !ok {
		return false
	}
	s.cache.Delete(id)
	return true
}

// Len returns the number of live statements.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// List returns the statements ordered by period; statements of the same
// period keep the order they were added in.
func (s *Store) List() []*models.Statement {
	items := s.cache.Items()

	entries := make([]entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, item.Object.(entry))
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].stmt.Period != entries[j].stmt.Period {
			return entries[i].stmt.Period < entries[j].stmt.Period
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]*models.Statement, len(entries))
	for i, e := range entries {
		out[i] = e.stmt
	}
	return out
}

// Compare builds the period comparison over every stored statement.
func (s *Store) Compare() Comparison {
	return Compare(s.List())
}

// PeriodStats is one statement's line in a comparison.
type PeriodStats struct {
	ID            string
	Period        string
	FileName      string
	TotalFees     decimal.Decimal
	OvernightFees decimal.Decimal
	LocateCosts   decimal.Decimal
	AvgDaily      decimal.Decimal
}

// Comparison lines up statements by period.
type Comparison struct {
	Periods []PeriodStats
	// FeeChangePct is the change of the latest period's total fees against
	// the previous one, in percent. It is zero with fewer than two periods
	// or when the previous total is zero.
	FeeChangePct decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Compare sorts statements by period and computes the fee trend.
func Compare(statements []*models.Statement) Comparison {
	sorted := make([]*models.Statement, len(statements))
	copy(sorted, statements)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Period < sorted[j].Period })

	cmp := Comparison{Periods: make([]PeriodStats, 0, len(sorted)), FeeChangePct: decimal.Zero}
	for _, stmt := range sorted {
		cmp.Periods = append(cmp.Periods, PeriodStats{
			ID:            stmt.ID,
			Period:        stmt.Period,
			FileName:      stmt.FileName,
			TotalFees:     models.RoundCents(stmt.Summary.TotalFees),
			OvernightFees: models.RoundCents(stmt.Totals.OvernightFees),
			LocateCosts:   models.RoundCents(stmt.Totals.LocateCosts),
			AvgDaily:      models.RoundCents(stmt.Summary.AvgDailyOvernightCost),
		})
	}

	if n := len(cmp.Periods); n >= 2 {
		latest, previous := cmp.Periods[n-1].TotalFees, cmp.Periods[n-2].TotalFees
		if !previous.IsZero() {
			cmp.FeeChangePct = latest.Sub(previous).Div(previous).Mul(hundred).Round(1)
		}
	}
	return cmp
}
