package session

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

func newFile(name string) domain.UploadedFile {
	return domain.UploadedFile{FileName: name, BankID: "rbc", Status: domain.FileStatusPending}
}

func newTx(id, desc string, net string) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		Date:           domain.NormalizeDate(2024, 1, 5),
		Description:    desc,
		MatchField:     domain.NormalizeMatchField(desc),
		NetAmount:      decimal.RequireFromString(net),
		Source:         "rbc",
		Classification: domain.ClassificationUnassigned,
		DuplicateFlag:  domain.DuplicateNone,
	}
}

func conflictTx(id string, categories ...string) domain.Transaction {
	tx := newTx(id, "UBER EATS", "-23.10")
	tx.Classification = domain.ClassificationConflict
	tx.ConflictingCategories = categories
	return tx
}

func categorizedTx(id, categoryID string) domain.Transaction {
	tx := newTx(id, "STARBUCKS #123", "-4.75")
	tx.Classification = domain.ClassificationCategorized
	tx.CategoryID = &categoryID
	return tx
}

func addParsed(t *testing.T, s *Session, fileName string, txs ...domain.Transaction) {
	t.Helper()
	_, err := s.AddFile(newFile(fileName))
	require.NoError(t, err)
	for i := range txs {
		txs[i].FileName = fileName
	}
	require.NoError(t, s.AddTransactions(fileName, txs, nil))
}

func TestSession_FilesKeepUploadOrder(t *testing.T) {
	s := New()

	for _, name := range []string{"jan.csv", "feb.csv", "mar.csv"} {
		_, err := s.AddFile(newFile(name))
		require.NoError(t, err)
	}

	files := s.Files()
	require.Len(t, files, 3)
	assert.Equal(t, "jan.csv", files[0].FileName)
	assert.Equal(t, "mar.csv", files[2].FileName)
	assert.Equal(t, 0, files[0].Seq)
	assert.Equal(t, 2, files[2].Seq)
}

func TestSession_DuplicateFileNameRejected(t *testing.T) {
	s := New()
	_, err := s.AddFile(newFile("jan.csv"))
	require.NoError(t, err)

	_, err = s.AddFile(newFile("jan.csv"))
	assert.Error(t, err)
}

func TestSession_StableOrderAcrossOutOfOrderIngestion(t *testing.T) {
	s := New()
	_, err := s.AddFile(newFile("first.csv"))
	require.NoError(t, err)
	_, err = s.AddFile(newFile("second.csv"))
	require.NoError(t, err)

	// second.csv finishes parsing before first.csv.
	require.NoError(t, s.AddTransactions("second.csv", []domain.Transaction{
		newTx("b1", "LOBLAWS", "-88.12"),
	}, nil))
	require.NoError(t, s.AddTransactions("first.csv", []domain.Transaction{
		newTx("a1", "STARBUCKS", "-4.75"),
		newTx("a2", "PAYROLL", "1500.00"),
	}, nil))

	txs := s.Transactions()
	require.Len(t, txs, 3)
	assert.Equal(t, []string{"a1", "a2", "b1"}, []string{txs[0].ID, txs[1].ID, txs[2].ID})
}

func TestSession_ResolveConflict(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", conflictTx("c1", "restaurants", "transport"))

	require.NoError(t, s.ResolveConflict("c1", "transport"))

	tx, err := s.Transaction("c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationCategorized, tx.Classification)
	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, "transport", *tx.CategoryID)
	assert.Nil(t, tx.ConflictingCategories)
	assert.Empty(t, s.ConflictIDs())
}

func TestSession_ResolveOutsideConflictSetRejected(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", conflictTx("c1", "restaurants", "transport"))

	err := s.ResolveConflict("c1", "groceries")
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	tx, _ := s.Transaction("c1")
	assert.Equal(t, domain.ClassificationConflict, tx.Classification)
}

func TestSession_ResolveNonConflictRejected(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", newTx("u1", "RENT", "-1800.00"))

	err := s.ResolveConflict("u1", "utilities")
	assert.ErrorIs(t, err, domain.ErrNotInConflict)
}

func TestSession_UndoRestoresOriginalConflictExactly(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", conflictTx("c1", "restaurants", "transport"))

	require.NoError(t, s.ResolveConflict("c1", "restaurants"))
	require.NoError(t, s.Undo("c1"))

	tx, err := s.Transaction("c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationConflict, tx.Classification)
	assert.Nil(t, tx.CategoryID)
	assert.Equal(t, []string{"restaurants", "transport"}, tx.ConflictingCategories)

	// The restored conflict can be resolved again, differently.
	require.NoError(t, s.ResolveConflict("c1", "transport"))
	tx, _ = s.Transaction("c1")
	assert.Equal(t, "transport", *tx.CategoryID)
}

func TestSession_UndoManualAssignment(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", newTx("u1", "RENT", "-1800.00"))

	require.NoError(t, s.AssignCategory("u1", "housing"))
	require.NoError(t, s.Undo("u1"))

	tx, _ := s.Transaction("u1")
	assert.Equal(t, domain.ClassificationUnassigned, tx.Classification)
	assert.Nil(t, tx.CategoryID)
}

func TestSession_UndoWithoutResolution(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", categorizedTx("k1", "restaurants"))

	err := s.Undo("k1")
	assert.ErrorIs(t, err, domain.ErrNotResolved)
}

func TestSession_AssignCategoryRequiresUnassigned(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", categorizedTx("k1", "restaurants"))

	err := s.AssignCategory("k1", "groceries")
	assert.ErrorIs(t, err, domain.ErrNotUnassigned)
}

func TestSession_Acknowledge(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", newTx("u1", "RENT", "-1800.00"))

	require.NoError(t, s.Acknowledge("u1"))

	tx, _ := s.Transaction("u1")
	assert.True(t, tx.Acknowledged)
	assert.Equal(t, domain.ClassificationUnassigned, tx.Classification)
}

func TestSession_DuplicateActions(t *testing.T) {
	s := New()
	dup := newTx("d1", "STARBUCKS", "-4.75")
	dup.DuplicateFlag = domain.DuplicateFlaggedSkip
	addParsed(t, s, "jan.csv", dup, newTx("n1", "PAYROLL", "1500.00"))

	require.NoError(t, s.SetDuplicateAction("d1", domain.CommitActionImport))
	tx, _ := s.Transaction("d1")
	assert.Equal(t, domain.DuplicateFlaggedImport, tx.DuplicateFlag)

	// Unflagged transactions have no duplicate action to set.
	err := s.SetDuplicateAction("n1", domain.CommitActionSkip)
	assert.ErrorIs(t, err, domain.ErrNotDuplicate)
}

func TestSession_BulkDuplicateActions(t *testing.T) {
	s := New()
	d1 := newTx("d1", "STARBUCKS", "-4.75")
	d1.DuplicateFlag = domain.DuplicateFlaggedSkip
	d2 := newTx("d2", "LOBLAWS", "-88.12")
	d2.DuplicateFlag = domain.DuplicateFlaggedImport
	addParsed(t, s, "jan.csv", d1, d2, newTx("n1", "PAYROLL", "1500.00"))

	s.ImportAllDuplicates()
	for _, id := range []string{"d1", "d2"} {
		tx, _ := s.Transaction(id)
		assert.Equal(t, domain.DuplicateFlaggedImport, tx.DuplicateFlag)
	}
	tx, _ := s.Transaction("n1")
	assert.Equal(t, domain.DuplicateNone, tx.DuplicateFlag)

	s.SkipAllDuplicates()
	for _, id := range []string{"d1", "d2"} {
		tx, _ := s.Transaction(id)
		assert.Equal(t, domain.DuplicateFlaggedSkip, tx.DuplicateFlag)
	}
}

func TestSession_CommitBlockedByConflicts(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv",
		conflictTx("c1", "restaurants", "transport"),
		categorizedTx("k1", "restaurants"),
	)

	result, err := s.Commit(nil)

	assert.Nil(t, result)
	var pending *domain.PendingConflictsError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, []string{"c1"}, pending.TransactionIDs)
	assert.False(t, s.Committed())

	// A failed commit leaves the session workable.
	require.NoError(t, s.ResolveConflict("c1", "transport"))
	_, err = s.Commit(nil)
	assert.NoError(t, err)
}

func TestSession_CommitProducesEntriesAndSummaries(t *testing.T) {
	s := New()

	skipped := newTx("d1", "STARBUCKS", "-4.75")
	skipped.DuplicateFlag = domain.DuplicateFlaggedSkip
	addParsed(t, s, "jan.csv",
		categorizedTx("k1", "restaurants"),
		skipped,
	)
	addParsed(t, s, "feb.csv", newTx("u1", "PAYROLL", "1500.00"))

	result, err := s.Commit(nil)
	require.NoError(t, err)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, domain.CommitActionImport, result.Entries[0].Action)
	assert.Equal(t, domain.CommitActionSkip, result.Entries[1].Action)
	assert.Equal(t, domain.CommitActionImport, result.Entries[2].Action)

	// Unassigned commits as uncategorized, not an error.
	assert.Nil(t, result.Entries[2].CategoryID)

	require.Len(t, result.Batches, 2)
	jan := result.Batches[0]
	assert.Equal(t, "jan.csv", jan.FileName)
	assert.Equal(t, 1, jan.TransactionCount)
	assert.True(t, jan.TotalAmount.Equal(decimal.RequireFromString("-4.75")))

	feb := result.Batches[1]
	assert.Equal(t, 1, feb.TransactionCount)
	assert.True(t, feb.TotalAmount.Equal(decimal.RequireFromString("1500.00")))
}

func TestSession_CommitStaysOpenWhenPersistFails(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", categorizedTx("k1", "restaurants"))

	storeDown := errors.New("store unavailable")
	result, err := s.Commit(func(*domain.CommitResult) error { return storeDown })

	assert.Nil(t, result)
	assert.ErrorIs(t, err, storeDown)
	assert.False(t, s.Committed())

	// The session finalizes only once the committer accepts the batch.
	var persisted *domain.CommitResult
	result, err = s.Commit(func(r *domain.CommitResult) error {
		persisted = r
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, result, persisted)
	assert.True(t, s.Committed())
}

func TestSession_CommittedSessionRefusesMutation(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", newTx("u1", "RENT", "-1800.00"))

	_, err := s.Commit(nil)
	require.NoError(t, err)
	require.True(t, s.Committed())

	_, err = s.Commit(nil)
	assert.ErrorIs(t, err, domain.ErrSessionCommitted)

	for _, err := range []error{
		s.AssignCategory("u1", "housing"),
		s.Acknowledge("u1"),
		s.Undo("u1"),
		s.ResolveConflict("u1", "housing"),
		s.AddTransactions("jan.csv", nil, nil),
		s.SetFileBank("jan.csv", "td", nil),
	} {
		assert.True(t, errors.Is(err, domain.ErrSessionCommitted))
	}
	_, err = s.AddFile(newFile("feb.csv"))
	assert.ErrorIs(t, err, domain.ErrSessionCommitted)
}

func TestSession_SetFileBankDropsParsedRows(t *testing.T) {
	s := New()
	addParsed(t, s, "jan.csv", newTx("a1", "STARBUCKS", "-4.75"))
	require.NoError(t, s.AddTransactions("jan.csv", nil, []domain.ParseWarning{
		{FileName: "jan.csv", Row: 3, Message: "zero amount"},
	}))
	addParsed(t, s, "feb.csv", newTx("b1", "PAYROLL", "1500.00"))

	require.NoError(t, s.SetFileBank("jan.csv", "td", nil))

	txs := s.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "b1", txs[0].ID)
	assert.Empty(t, s.Warnings())

	f, err := s.File("jan.csv")
	require.NoError(t, err)
	assert.Equal(t, "td", f.BankID)
	assert.Equal(t, domain.FileStatusPending, f.Status)

	_, err = s.Transaction("a1")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestSession_UnknownIDs(t *testing.T) {
	s := New()

	_, err := s.File("nope.csv")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	_, err = s.Transaction("nope")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	assert.ErrorIs(t, s.ResolveConflict("nope", "x"), domain.ErrTransactionNotFound)
	assert.ErrorIs(t, s.AddTransactions("nope.csv", nil, nil), domain.ErrFileNotFound)
}
