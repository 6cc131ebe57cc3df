package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jos-ren/sors-ledger/internal/bank"
	"github.com/jos-ren/sors-ledger/internal/categorize"
	"github.com/jos-ren/sors-ledger/internal/dedupe"
	"github.com/jos-ren/sors-ledger/internal/domain"
	"github.com/jos-ren/sors-ledger/internal/eventbus"
	"github.com/jos-ren/sors-ledger/internal/rowreader"
	"github.com/jos-ren/sors-ledger/internal/session"
	"github.com/jos-ren/sors-ledger/pkg/logger"
)

// Repository is what the import core needs from the outside world: session
// bookkeeping, the read-only category list, the duplicate index over
// committed transactions, and a committer.
type Repository interface {
	CreateSession(ctx context.Context) (*session.Session, error)
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	DuplicateIndex(ctx context.Context) (dedupe.Index, error)
	CommitBatch(ctx context.Context, result *domain.CommitResult) error
}

// ImportService drives statement files through detection, parsing,
// categorization and duplicate flagging into a resolution session.
type ImportService interface {
	CreateSession(ctx context.Context) (string, error)
	AddFile(ctx context.Context, sessionID, fileName string, content []byte, bankID string, mapping *domain.ColumnMapping) (domain.UploadedFile, error)
	IngestFile(ctx context.Context, sessionID, fileName string) error
	ReassignBank(ctx context.Context, sessionID, fileName, bankID string, mapping *domain.ColumnMapping) error

	Files(ctx context.Context, sessionID string) ([]domain.UploadedFile, error)
	Transactions(ctx context.Context, sessionID string) ([]domain.Transaction, error)
	Warnings(ctx context.Context, sessionID string) ([]domain.ParseWarning, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Banks(ctx context.Context) []string

	ResolveConflict(ctx context.Context, sessionID, txID, categoryID string) error
	UndoResolution(ctx context.Context, sessionID, txID string) error
	AssignCategory(ctx context.Context, sessionID, txID, categoryID string) error
	Acknowledge(ctx context.Context, sessionID, txID string) error
	SetDuplicateAction(ctx context.Context, sessionID, txID string, action domain.CommitAction) error
	SkipAllDuplicates(ctx context.Context, sessionID string) error
	ImportAllDuplicates(ctx context.Context, sessionID string) error

	Commit(ctx context.Context, sessionID string) (*domain.CommitResult, error)
}

type importService struct {
	repo            Repository
	registry        *bank.Registry
	bus             eventbus.EventBus
	logger          *logger.Logger
	detectionRowCap int
}

func NewImportService(repo Repository, registry *bank.Registry, bus eventbus.EventBus, log *logger.Logger, detectionRowCap int) ImportService {
	if detectionRowCap <= 0 {
		detectionRowCap = 10
	}
	return &importService{
		repo:            repo,
		registry:        registry,
		bus:             bus,
		logger:          log,
		detectionRowCap: detectionRowCap,
	}
}

func (s *importService) CreateSession(ctx context.Context) (string, error) {
	sess, err := s.repo.CreateSession(ctx)
	if err != nil {
		return "", err
	}

	s.logger.Info(logger.WithSessionID(ctx, sess.ID()), "Session created")
	return sess.ID(), nil
}

// AddFile registers a file with the session. When no bank is given, bank
// detection runs on a bounded row prefix; an ambiguous result leaves the
// file waiting for manual bank selection instead of guessing. Files with a
// resolved bank are queued for asynchronous ingestion.
func (s *importService) AddFile(ctx context.Context, sessionID, fileName string, content []byte, bankID string, mapping *domain.ColumnMapping) (domain.UploadedFile, error) {
	ctx = logger.WithSessionID(ctx, sessionID)
	ctx = logger.WithFileName(ctx, fileName)

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.UploadedFile{}, err
	}

	file := domain.UploadedFile{
		FileName: fileName,
		BankID:   bankID,
		Mapping:  mapping,
		Content:  content,
		Status:   domain.FileStatusPending,
	}

	if bankID == "" {
		prefix, err := rowreader.ReadPrefix(fileName, content, s.detectionRowCap)
		if err != nil {
			s.logger.Error(ctx, "File is unreadable", "error", err)
			return domain.UploadedFile{}, err
		}

		file.Detection = s.registry.Detect(fileName, prefix)
		file.BankID = file.Detection.BankID

		s.logger.Info(ctx, "Bank detection finished",
			"bank_id", file.Detection.BankID,
			"confidence", file.Detection.Confidence,
			"reason", file.Detection.Reason,
		)

		if file.Detection.BankID == "" {
			file.Status = domain.FileStatusNeedsBank
		}
	} else {
		if _, ok := s.registry.Get(bankID); !ok {
			return domain.UploadedFile{}, fmt.Errorf("%w: %s", domain.ErrUnknownBank, bankID)
		}
		file.Detection = domain.DetectionResult{
			BankID:     bankID,
			Confidence: domain.ConfidenceHigh,
			Reason:     "bank selected manually",
		}
	}

	added, err := sess.AddFile(file)
	if err != nil {
		return domain.UploadedFile{}, err
	}

	if added.Status == domain.FileStatusPending {
		if err := s.publishIngest(ctx, sessionID, fileName); err != nil {
			// The file must not sit in pending with no event behind it.
			s.logger.Error(ctx, "Failed to queue file for ingestion", "error", err)
			_ = sess.SetFileState(fileName, domain.FileStatusFailed, []string{err.Error()}, nil)
			return domain.UploadedFile{}, err
		}
	}

	return added, nil
}

func (s *importService) publishIngest(ctx context.Context, sessionID, fileName string) error {
	event := eventbus.Event{
		ID:   fmt.Sprintf("%s-%s", sessionID, fileName),
		Type: eventbus.EventTypeIngest,
		Payload: eventbus.IngestEvent{
			SessionID: sessionID,
			FileName:  fileName,
		},
		Timestamp: time.Now(),
	}
	return s.bus.Publish(ctx, event)
}

// IngestFile validates and parses one file, classifies the result and flags
// duplicates, then merges everything into the session. Deterministic file
// problems are recorded on the file rather than returned, so event retries
// are not wasted on them. Idempotent: a file that already left the pending
// state is not touched again.
func (s *importService) IngestFile(ctx context.Context, sessionID, fileName string) error {
	ctx = logger.WithSessionID(ctx, sessionID)
	ctx = logger.WithFileName(ctx, fileName)

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	file, err := sess.File(fileName)
	if err != nil {
		return err
	}
	if file.Status != domain.FileStatusPending {
		s.logger.Debug(ctx, "File not pending, skipping ingestion",
			"status", file.Status,
		)
		return nil
	}

	if err := sess.SetFileState(fileName, domain.FileStatusParsing, nil, nil); err != nil {
		return err
	}

	rows, err := rowreader.ReadAll(fileName, file.Content)
	if err != nil {
		s.logger.Error(ctx, "File is unreadable", "error", err)
		return sess.SetFileState(fileName, domain.FileStatusFailed, []string{err.Error()}, nil)
	}

	validationErrs, structWarnings, err := s.registry.Validate(file.BankID, rows, file.Mapping)
	if err != nil {
		return err
	}
	if len(validationErrs) > 0 {
		msgs := make([]string, 0, len(validationErrs))
		for _, ve := range validationErrs {
			msgs = append(msgs, ve.Error())
		}
		s.logger.Warn(ctx, "File failed validation, needs bank reassignment",
			"bank_id", file.BankID,
			"errors", msgs,
		)
		return sess.SetFileState(fileName, domain.FileStatusNeedsBank, msgs, structWarnings)
	}

	txs, parseWarnings, err := s.registry.Parse(file.BankID, fileName, rows, file.Mapping)
	if err != nil {
		var noData *domain.NoDataExtractedError
		if errors.As(err, &noData) {
			s.logger.Error(ctx, "No transactions extracted",
				"bank_id", file.BankID,
				"skipped_rows", len(parseWarnings),
			)
			return sess.SetFileState(fileName, domain.FileStatusFailed, []string{err.Error()}, structWarnings)
		}
		return err
	}

	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return err
	}
	categorize.ClassifyAll(txs, categories)

	index, err := s.repo.DuplicateIndex(ctx)
	if err != nil {
		return err
	}
	dedupe.Flag(txs, index)

	if err := sess.AddTransactions(fileName, txs, parseWarnings); err != nil {
		return err
	}

	s.logger.Info(ctx, "File ingested",
		"bank_id", file.BankID,
		"transactions", len(txs),
		"skipped_rows", len(parseWarnings),
	)

	return sess.SetFileState(fileName, domain.FileStatusParsed, nil, structWarnings)
}

// ReassignBank moves a file to a different bank and queues it for
// re-ingestion. Used after ambiguous detection or failed validation.
func (s *importService) ReassignBank(ctx context.Context, sessionID, fileName, bankID string, mapping *domain.ColumnMapping) error {
	ctx = logger.WithSessionID(ctx, sessionID)
	ctx = logger.WithFileName(ctx, fileName)

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, ok := s.registry.Get(bankID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownBank, bankID)
	}
	if bankID == bank.CustomID {
		file, err := sess.File(fileName)
		if err != nil {
			return err
		}
		if mapping == nil && file.Mapping == nil {
			return domain.ErrMissingMapping
		}
	}

	if err := sess.SetFileBank(fileName, bankID, mapping); err != nil {
		return err
	}

	s.logger.Info(ctx, "Bank reassigned", "bank_id", bankID)
	if err := s.publishIngest(ctx, sessionID, fileName); err != nil {
		s.logger.Error(ctx, "Failed to queue file for ingestion", "error", err)
		_ = sess.SetFileState(fileName, domain.FileStatusFailed, []string{err.Error()}, nil)
		return err
	}
	return nil
}

func (s *importService) Files(ctx context.Context, sessionID string) ([]domain.UploadedFile, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Files(), nil
}

func (s *importService) Transactions(ctx context.Context, sessionID string) ([]domain.Transaction, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Transactions(), nil
}

func (s *importService) Warnings(ctx context.Context, sessionID string) ([]domain.ParseWarning, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Warnings(), nil
}

func (s *importService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.Categories(ctx)
}

func (s *importService) Banks(ctx context.Context) []string {
	return s.registry.IDs()
}

func (s *importService) ResolveConflict(ctx context.Context, sessionID, txID, categoryID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.ResolveConflict(txID, categoryID); err != nil {
		return err
	}

	s.logger.Info(logger.WithSessionID(ctx, sessionID), "Conflict resolved",
		"transaction_id", txID,
		"category_id", categoryID,
	)
	return nil
}

func (s *importService) UndoResolution(ctx context.Context, sessionID, txID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return sess.Undo(txID)
}

func (s *importService) AssignCategory(ctx context.Context, sessionID, txID, categoryID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		return err
	}
	return sess.AssignCategory(txID, categoryID)
}

func (s *importService) Acknowledge(ctx context.Context, sessionID, txID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return sess.Acknowledge(txID)
}

func (s *importService) SetDuplicateAction(ctx context.Context, sessionID, txID string, action domain.CommitAction) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return sess.SetDuplicateAction(txID, action)
}

func (s *importService) SkipAllDuplicates(ctx context.Context, sessionID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.SkipAllDuplicates()
	return nil
}

func (s *importService) ImportAllDuplicates(ctx context.Context, sessionID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.ImportAllDuplicates()
	return nil
}

// Commit finalizes the session and hands the result to the committer in one
// step. A session with unresolved conflicts fails with PendingConflictsError
// and nothing is persisted; a committer failure leaves the session open so
// the commit can be retried.
func (s *importService) Commit(ctx context.Context, sessionID string) (*domain.CommitResult, error) {
	ctx = logger.WithSessionID(ctx, sessionID)

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := sess.Commit(func(r *domain.CommitResult) error {
		return s.repo.CommitBatch(ctx, r)
	})
	if err != nil {
		s.logger.Warn(ctx, "Commit refused", "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "Session committed",
		"entries", len(result.Entries),
		"batches", len(result.Batches),
	)
	return result, nil
}
