package storage

import (
	"context"
	"sync"

	"github.com/jos-ren/sors-ledger/internal/dedupe"
	"github.com/jos-ren/sors-ledger/internal/domain"
	"github.com/jos-ren/sors-ledger/internal/session"
)

// MemoryStore holds live sessions, the category list and everything the
// import core treats as external: committed transactions, batch metadata and
// the duplicate index derived from them.
type MemoryStore struct {
	sessions   map[string]*session.Session
	categories []domain.Category
	committed  []domain.Transaction
	batches    []domain.BatchSummary
	index      dedupe.Index
	mu         sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*session.Session),
		categories: defaultCategories(),
		index:      make(dedupe.Index),
	}
}

// defaultCategories seeds the keyword rules a fresh install starts with.
func defaultCategories() []domain.Category {
	return []domain.Category{
		{ID: "groceries", Name: "Groceries", Keywords: []string{"LOBLAWS", "SOBEYS", "METRO", "NOFRILLS", "COSTCO", "GROCERY"}},
		{ID: "restaurants", Name: "Restaurants", Keywords: []string{"RESTAURANT", "STARBUCKS", "TIM HORTONS", "MCDONALD", "EATS", "PIZZA"}},
		{ID: "transport", Name: "Transport", Keywords: []string{"UBER", "LYFT", "PRESTO", "PETRO", "SHELL", "ESSO"}},
		{ID: "entertainment", Name: "Entertainment", Keywords: []string{"NETFLIX", "SPOTIFY", "CINEPLEX", "STEAM"}},
		{ID: "utilities", Name: "Utilities", Keywords: []string{"HYDRO", "ENBRIDGE", "BELL", "ROGERS", "TELUS"}},
		{ID: "income", Name: "Income", Keywords: []string{"PAYROLL", "DEPOSIT", "SALARY"}, IsSystem: true},
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := session.New()
	s.sessions[sess.ID()] = sess
	return sess, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Categories returns the current category list. Read-only to the import
// core.
func (s *MemoryStore) Categories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Category{}, domain.ErrCategoryNotFound
}

// DuplicateIndex returns the (date, matchField, netAmount) lookup over
// already-committed transactions.
func (s *MemoryStore) DuplicateIndex(ctx context.Context) (dedupe.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(dedupe.Index, len(s.index))
	for k := range s.index {
		out[k] = struct{}{}
	}
	return out, nil
}

// CommitBatch persists a finalized commit result: imported entries join the
// ledger and the duplicate index, skipped ones are dropped.
func (s *MemoryStore) CommitBatch(ctx context.Context, result *domain.CommitResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range result.Entries {
		if entry.Action != domain.CommitActionImport {
			continue
		}
		tx := entry.Transaction
		tx.CategoryID = entry.CategoryID
		s.committed = append(s.committed, tx)
		s.index.Add(tx)
	}
	s.batches = append(s.batches, result.Batches...)

	return nil
}

// CommittedTransactions returns the ledger accumulated by past commits.
func (s *MemoryStore) CommittedTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.committed))
	copy(out, s.committed)
	return out, nil
}

// Batches returns metadata for every committed batch.
func (s *MemoryStore) Batches(ctx context.Context) ([]domain.BatchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BatchSummary, len(s.batches))
	copy(out, s.batches)
	return out, nil
}
