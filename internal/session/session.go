// Package session holds the in-memory resolution workflow: parsed
// transactions, their conflict/duplicate/unassigned states and the user's
// decisions, up to one atomic commit.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// record pairs the mutable current transaction with the immutable original
// classification so a resolution can always be undone losslessly.
type record struct {
	current            domain.Transaction
	originalClass      domain.Classification
	originalCategoryID *string
	originalConflicts  []string
}

// block is one file's contiguous run of transaction ids.
type block struct {
	seq int
	ids []string
}

// Session is a single-user import workflow. The core contract is
// synchronous, but file ingestion completes on worker goroutines, so all
// state is guarded by one mutex.
type Session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	committed bool

	files     map[string]*domain.UploadedFile
	fileOrder []string
	nextSeq   int

	records  map[string]*record
	blocks   []block
	warnings []domain.ParseWarning
}

func New() *Session {
	return &Session{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		files:     make(map[string]*domain.UploadedFile),
		records:   make(map[string]*record),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// AddFile registers an uploaded file and assigns its ordering sequence.
func (s *Session) AddFile(file domain.UploadedFile) (domain.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.UploadedFile{}, domain.ErrSessionCommitted
	}
	if _, exists := s.files[file.FileName]; exists {
		return domain.UploadedFile{}, fmt.Errorf("file %s already in session", file.FileName)
	}

	file.Seq = s.nextSeq
	s.nextSeq++

	stored := file
	s.files[file.FileName] = &stored
	s.fileOrder = append(s.fileOrder, file.FileName)

	return file, nil
}

// File returns a snapshot of one uploaded file.
func (s *Session) File(fileName string) (domain.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[fileName]
	if !ok {
		return domain.UploadedFile{}, domain.ErrFileNotFound
	}
	return *f, nil
}

// Files returns snapshots in upload order.
func (s *Session) Files() []domain.UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.UploadedFile, 0, len(s.fileOrder))
	for _, name := range s.fileOrder {
		out = append(out, *s.files[name])
	}
	return out
}

// SetFileState updates a file's lifecycle status and issue lists.
func (s *Session) SetFileState(fileName string, status domain.FileStatus, errs, warnings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[fileName]
	if !ok {
		return domain.ErrFileNotFound
	}
	f.Status = status
	f.Errors = errs
	f.Warnings = warnings
	return nil
}

// SetFileBank reassigns a file to a bank, dropping any transactions parsed
// under the previous assignment so the file can be re-ingested.
func (s *Session) SetFileBank(fileName, bankID string, mapping *domain.ColumnMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	f, ok := s.files[fileName]
	if !ok {
		return domain.ErrFileNotFound
	}

	f.BankID = bankID
	if mapping != nil {
		f.Mapping = mapping
	}
	f.Status = domain.FileStatusPending
	f.Errors = nil
	f.Warnings = nil

	s.dropFileTransactions(f.Seq, fileName)
	return nil
}

func (s *Session) dropFileTransactions(seq int, fileName string) {
	for i, b := range s.blocks {
		if b.seq != seq {
			continue
		}
		for _, id := range b.ids {
			delete(s.records, id)
		}
		s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
		break
	}

	kept := s.warnings[:0]
	for _, w := range s.warnings {
		if w.FileName != fileName {
			kept = append(kept, w)
		}
	}
	s.warnings = kept
}

// AddTransactions merges one file's parsed transactions into the session.
// Blocks are kept sorted by file sequence so the merged ordering is stable
// (file order, then row order) no matter which file finishes parsing first.
func (s *Session) AddTransactions(fileName string, txs []domain.Transaction, warnings []domain.ParseWarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	f, ok := s.files[fileName]
	if !ok {
		return domain.ErrFileNotFound
	}

	b := block{seq: f.Seq, ids: make([]string, 0, len(txs))}
	for _, tx := range txs {
		rec := &record{
			current:            tx,
			originalClass:      tx.Classification,
			originalCategoryID: tx.CategoryID,
			originalConflicts:  append([]string(nil), tx.ConflictingCategories...),
		}
		s.records[tx.ID] = rec
		b.ids = append(b.ids, tx.ID)
	}

	s.blocks = append(s.blocks, b)
	sort.SliceStable(s.blocks, func(i, j int) bool { return s.blocks[i].seq < s.blocks[j].seq })

	s.warnings = append(s.warnings, warnings...)
	return nil
}

// Transactions returns the merged transaction list in stable order.
func (s *Session) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked()
}

func (s *Session) orderedLocked() []domain.Transaction {
	var out []domain.Transaction
	for _, b := range s.blocks {
		for _, id := range b.ids {
			out = append(out, s.records[id].current)
		}
	}
	return out
}

// Transaction returns a snapshot of one transaction.
func (s *Session) Transaction(id string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return rec.current, nil
}

// Warnings returns all row-level parse warnings collected so far.
func (s *Session) Warnings() []domain.ParseWarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ParseWarning(nil), s.warnings...)
}

// ConflictIDs lists transactions still in conflict, in stable order.
func (s *Session) ConflictIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, b := range s.blocks {
		for _, id := range b.ids {
			if s.records[id].current.Classification == domain.ClassificationConflict {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ResolveConflict picks one of the conflicting categories as the winner.
// The original conflict set is retained for undo.
func (s *Session) ResolveConflict(id, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if rec.current.Classification != domain.ClassificationConflict {
		return domain.ErrNotInConflict
	}

	member := false
	for _, c := range rec.current.ConflictingCategories {
		if c == categoryID {
			member = true
			break
		}
	}
	if !member {
		return domain.ErrInvalidResolution
	}

	rec.current.Classification = domain.ClassificationCategorized
	rec.current.CategoryID = &categoryID
	rec.current.ConflictingCategories = nil
	return nil
}

// Undo reverses a resolution or manual assignment, restoring the original
// classification and conflict set exactly.
func (s *Session) Undo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if rec.current.Classification == rec.originalClass &&
		samePtr(rec.current.CategoryID, rec.originalCategoryID) {
		return domain.ErrNotResolved
	}

	rec.current.Classification = rec.originalClass
	rec.current.CategoryID = rec.originalCategoryID
	rec.current.ConflictingCategories = append([]string(nil), rec.originalConflicts...)
	rec.current.Acknowledged = false
	return nil
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AssignCategory manually categorizes an unassigned transaction.
func (s *Session) AssignCategory(id, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if rec.current.Classification != domain.ClassificationUnassigned {
		return domain.ErrNotUnassigned
	}

	rec.current.Classification = domain.ClassificationCategorized
	rec.current.CategoryID = &categoryID
	rec.current.Acknowledged = false
	return nil
}

// Acknowledge records an explicit decision to leave a transaction
// uncategorized.
func (s *Session) Acknowledge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if rec.current.Classification != domain.ClassificationUnassigned {
		return domain.ErrNotUnassigned
	}

	rec.current.Acknowledged = true
	return nil
}

// SetDuplicateAction changes a flagged duplicate's disposition. Reversible
// until commit.
func (s *Session) SetDuplicateAction(id string, action domain.CommitAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return domain.ErrSessionCommitted
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if rec.current.DuplicateFlag == domain.DuplicateNone {
		return domain.ErrNotDuplicate
	}

	switch action {
	case domain.CommitActionImport:
		rec.current.DuplicateFlag = domain.DuplicateFlaggedImport
	case domain.CommitActionSkip:
		rec.current.DuplicateFlag = domain.DuplicateFlaggedSkip
	default:
		return fmt.Errorf("invalid duplicate action %q", action)
	}
	return nil
}

// SkipAllDuplicates sets every flagged duplicate back to skip.
func (s *Session) SkipAllDuplicates() {
	s.setAllDuplicates(domain.DuplicateFlaggedSkip)
}

// ImportAllDuplicates sets every flagged duplicate to import.
func (s *Session) ImportAllDuplicates() {
	s.setAllDuplicates(domain.DuplicateFlaggedImport)
}

func (s *Session) setAllDuplicates(flag domain.DuplicateFlag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.current.DuplicateFlag != domain.DuplicateNone {
			rec.current.DuplicateFlag = flag
		}
	}
}

// Commit finalizes the session. Precondition: zero transactions remain in
// conflict; otherwise a PendingConflictsError lists them and nothing is
// produced. Unassigned transactions commit as uncategorized; duplicates
// commit per their current skip/import action. The result is produced in one
// step: persist, when non-nil, receives it before the session is marked
// committed, and a persist error leaves the session open so the commit can
// be retried. After success the session refuses further mutation.
func (s *Session) Commit(persist func(*domain.CommitResult) error) (*domain.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return nil, domain.ErrSessionCommitted
	}

	var pending []string
	for _, b := range s.blocks {
		for _, id := range b.ids {
			if s.records[id].current.Classification == domain.ClassificationConflict {
				pending = append(pending, id)
			}
		}
	}
	if len(pending) > 0 {
		return nil, &domain.PendingConflictsError{TransactionIDs: pending}
	}

	result := &domain.CommitResult{SessionID: s.id}
	summaries := make(map[int]*domain.BatchSummary)

	for _, b := range s.blocks {
		for _, id := range b.ids {
			tx := s.records[id].current

			action := domain.CommitActionImport
			if tx.DuplicateFlag == domain.DuplicateFlaggedSkip {
				action = domain.CommitActionSkip
			}

			result.Entries = append(result.Entries, domain.CommittedEntry{
				Transaction: tx,
				CategoryID:  tx.CategoryID,
				Action:      action,
			})

			sum, ok := summaries[b.seq]
			if !ok {
				sum = &domain.BatchSummary{
					FileName:    tx.FileName,
					Source:      tx.Source,
					TotalAmount: decimal.Zero,
				}
				summaries[b.seq] = sum
			}
			if action == domain.CommitActionImport {
				sum.TransactionCount++
				sum.TotalAmount = sum.TotalAmount.Add(tx.NetAmount)
			}
		}
	}

	for _, b := range s.blocks {
		if sum, ok := summaries[b.seq]; ok {
			result.Batches = append(result.Batches, *sum)
		}
	}

	if persist != nil {
		if err := persist(result); err != nil {
			return nil, err
		}
	}

	s.committed = true
	return result, nil
}
