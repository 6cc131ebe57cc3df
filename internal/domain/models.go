package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Classification is the categorization state of a transaction. A transaction
// is always in exactly one of these states.
type Classification string

const (
	ClassificationCategorized Classification = "categorized"
	ClassificationConflict    Classification = "conflict"
	ClassificationUnassigned  Classification = "unassigned"
)

// DuplicateFlag tracks duplicate detection independently of classification.
type DuplicateFlag string

const (
	DuplicateNone          DuplicateFlag = "none"
	DuplicateFlaggedSkip   DuplicateFlag = "flagged-skip"
	DuplicateFlaggedImport DuplicateFlag = "flagged-import"
)

// CommitAction is the final disposition of a committed transaction.
type CommitAction string

const (
	CommitActionImport CommitAction = "import"
	CommitActionSkip   CommitAction = "skip"
)

// Confidence expresses how sure bank detection is about a file's origin.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

var confidenceRank = map[Confidence]int{
	ConfidenceNone:   0,
	ConfidenceLow:    1,
	ConfidenceMedium: 2,
	ConfidenceHigh:   3,
}

// Rank returns the ordering value of a confidence level, none being lowest.
func (c Confidence) Rank() int {
	return confidenceRank[c]
}

// Transaction is a parsed statement row. It lives in memory only; nothing is
// persisted until the resolution session commits.
type Transaction struct {
	ID                    string          `json:"id"`
	Date                  time.Time       `json:"date"`
	Description           string          `json:"description"`
	MatchField            string          `json:"match_field"`
	AmountOut             decimal.Decimal `json:"amount_out"`
	AmountIn              decimal.Decimal `json:"amount_in"`
	NetAmount             decimal.Decimal `json:"net_amount"`
	Source                string          `json:"source"`
	FileName              string          `json:"file_name"`
	CategoryID            *string         `json:"category_id"`
	ConflictingCategories []string        `json:"conflicting_categories,omitempty"`
	Classification        Classification  `json:"classification"`
	DuplicateFlag         DuplicateFlag   `json:"duplicate_flag"`
	Acknowledged          bool            `json:"acknowledged"`
}

// NormalizeMatchField derives the matching key from a raw description:
// trimmed and upper-cased. It is the single key used by both categorization
// and duplicate comparison.
func NormalizeMatchField(description string) string {
	return strings.ToUpper(strings.TrimSpace(description))
}

// NormalizeDate pins a calendar date to noon UTC so timezone rounding can
// never shift it across a day boundary.
func NormalizeDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

// Category is read-only to the import core. Keyword uniqueness across
// categories is assumed, not enforced; overlaps surface as conflicts.
type Category struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	IsSystem bool     `json:"is_system"`
}

// ColumnMapping maps spreadsheet columns to logical transaction fields for
// the custom bank variant. AmountCol is a single signed amount column;
// AmountOutCol/AmountInCol are separate debit/credit columns. Exactly one of
// the two styles must be provided. Column indexes are zero-based; -1 means
// unset.
type ColumnMapping struct {
	DateCol        int    `json:"date_col"`
	DescriptionCol int    `json:"description_col"`
	AmountCol      int    `json:"amount_col"`
	AmountOutCol   int    `json:"amount_out_col"`
	AmountInCol    int    `json:"amount_in_col"`
	DateFormat     string `json:"date_format,omitempty"`
	HasHeader      bool   `json:"has_header"`
}

// DefaultColumnMapping returns a mapping with every column unset. JSON
// decoding should start from this so an omitted field means unset, not
// column zero.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		DateCol:        -1,
		DescriptionCol: -1,
		AmountCol:      -1,
		AmountOutCol:   -1,
		AmountInCol:    -1,
	}
}

// FileStatus is the lifecycle state of an uploaded file within a session.
type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusNeedsBank FileStatus = "needs_bank"
	FileStatusParsing   FileStatus = "parsing"
	FileStatusParsed    FileStatus = "parsed"
	FileStatusFailed    FileStatus = "failed"
)

// DetectionResult is the outcome of bank auto-detection. An empty BankID
// with ConfidenceNone is a normal terminal state, not an error: the caller
// must ask the user.
type DetectionResult struct {
	BankID     string     `json:"bank_id"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
}

// UploadedFile wraps one statement file through a session. Content is held
// so parsing can re-read from the start after detection consumed a prefix.
type UploadedFile struct {
	FileName  string          `json:"file_name"`
	BankID    string          `json:"bank_id"`
	Detection DetectionResult `json:"detection"`
	Status    FileStatus      `json:"status"`
	Errors    []string        `json:"errors,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Mapping   *ColumnMapping  `json:"mapping,omitempty"`
	Seq       int             `json:"seq"`
	Content   []byte          `json:"-"`
}

// ParseWarning reports a skipped row. Non-fatal, surfaced for visibility.
type ParseWarning struct {
	FileName string `json:"file_name"`
	Row      int    `json:"row"`
	Message  string `json:"message"`
}

// CommittedEntry is one finalized transaction in a commit result.
type CommittedEntry struct {
	Transaction Transaction  `json:"transaction"`
	CategoryID  *string      `json:"category_id"`
	Action      CommitAction `json:"action"`
}

// BatchSummary is per-file commit metadata handed to the committer.
type BatchSummary struct {
	FileName         string          `json:"file_name"`
	Source           string          `json:"source"`
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

// CommitResult is the immutable output of a successful session commit.
type CommitResult struct {
	SessionID string           `json:"session_id"`
	Entries   []CommittedEntry `json:"entries"`
	Batches   []BatchSummary   `json:"batches"`
}
