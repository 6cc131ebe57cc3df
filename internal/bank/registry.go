package bank

import (
	"fmt"

	"github.com/jos-ren/sors-ledger/internal/domain"
)

// Registry holds the registered bank parsers and dispatches detection,
// validation and parsing by bank id.
type Registry struct {
	order   []string
	parsers map[string]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate id; registration order is
// preserved so detection is deterministic.
func (r *Registry) Register(p Parser) {
	if _, ok := r.parsers[p.ID()]; ok {
		panic("duplicate bank parser id: " + p.ID())
	}
	r.order = append(r.order, p.ID())
	r.parsers[p.ID()] = p
}

// Default returns a registry with all built-in parsers.
func Default() *Registry {
	r := NewRegistry()
	r.Register(&RBCParser{})
	r.Register(&TDParser{})
	r.Register(&ScotiabankParser{})
	r.Register(&AmexParser{})
	r.Register(&CustomParser{})
	return r
}

// Get returns the parser for id.
func (r *Registry) Get(id string) (Parser, bool) {
	p, ok := r.parsers[id]
	return p, ok
}

// IDs lists registered parser ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Detect resolves which bank a file came from. Filename patterns are the
// fast path; otherwise each parser scores a bounded row prefix. Ambiguity is
// never silently resolved: ties and all-none both return an empty BankID
// with ConfidenceNone so the caller can ask the user.
func (r *Registry) Detect(fileName string, prefix [][]string) domain.DetectionResult {
	var nameHits []Parser
	for _, id := range r.order {
		p := r.parsers[id]
		if p.MatchFilename(fileName) {
			nameHits = append(nameHits, p)
		}
	}
	if len(nameHits) == 1 {
		p := nameHits[0]
		return domain.DetectionResult{
			BankID:     p.ID(),
			Confidence: domain.ConfidenceHigh,
			Reason:     fmt.Sprintf("file name matches %s export naming", p.DisplayName()),
		}
	}

	best := domain.ConfidenceNone
	bestCount := 0
	var bestParser Parser
	for _, id := range r.order {
		p := r.parsers[id]
		score := p.ScoreContent(prefix)
		switch {
		case score.Rank() > best.Rank():
			best = score
			bestCount = 1
			bestParser = p
		case score.Rank() == best.Rank() && score != domain.ConfidenceNone:
			bestCount++
		}
	}

	if best == domain.ConfidenceNone {
		return domain.DetectionResult{
			Confidence: domain.ConfidenceNone,
			Reason:     "no registered bank recognized the content",
		}
	}
	if bestCount > 1 {
		return domain.DetectionResult{
			Confidence: domain.ConfidenceNone,
			Reason:     fmt.Sprintf("%d banks scored %s; manual selection required", bestCount, best),
		}
	}

	return domain.DetectionResult{
		BankID:     bestParser.ID(),
		Confidence: best,
		Reason:     fmt.Sprintf("content signature matches %s (%s)", bestParser.DisplayName(), best),
	}
}

// Validate runs the bank-specific structural check. Returned errors block
// parsing; warnings are informational.
func (r *Registry) Validate(bankID string, rows [][]string, mapping *domain.ColumnMapping) ([]domain.ValidationError, []string, error) {
	p, ok := r.parsers[bankID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownBank, bankID)
	}
	errs, warnings := p.Validate(rows, mapping)
	return errs, warnings, nil
}

// Parse converts a file's rows into transactions. Malformed rows are skipped
// and reported as warnings; zero surviving rows is a hard failure, never an
// empty success.
func (r *Registry) Parse(bankID, fileName string, rows [][]string, mapping *domain.ColumnMapping) ([]domain.Transaction, []domain.ParseWarning, error) {
	p, ok := r.parsers[bankID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownBank, bankID)
	}
	if bankID == CustomID && mapping == nil {
		return nil, nil, domain.ErrMissingMapping
	}

	txs, warnings := p.ParseRows(fileName, rows, mapping)
	if len(txs) == 0 {
		return nil, warnings, &domain.NoDataExtractedError{FileName: fileName, BankID: bankID}
	}
	return txs, warnings, nil
}
