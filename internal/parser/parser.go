package parser

import (
	"time"

	"github.com/cliohq/statement-worker/internal/models"
)

// Parser is the capability every statement parser implements: decide whether
// it recognizes a document, and extract a complete candidate bill from it.
type Parser interface {
	// BankName returns the human-readable bank name this parser handles.
	BankName() string
	// CanParse reports whether this parser recognizes the statement text.
	CanParse(text string) bool
	// Parse extracts a bill record. It always succeeds: missing fields get
	// sentinel values and drag the confidence score down instead of failing.
	Parse(text string) *models.ParsedBill
}

// Selector picks the parser for a statement. Bank parsers are tried in a
// fixed priority order; the generic parser is last and accepts anything, so
// selection always terminates.
type Selector struct {
	parsers []Parser
	generic *GenericParser
}

// NewSelector builds a selector with the default bank parser order. The
// clock is passed to every parser for date defaults; nil means time.Now.
func NewSelector(now func() time.Time) *Selector {
	return &Selector{
		parsers: []Parser{
			&CTBCParser{Now: now},
			&CathayUnitedParser{Now: now},
			&TaishinParser{Now: now},
		},
		generic: &GenericParser{Now: now},
	}
}

// Select returns the first bank parser that recognizes the text, falling back
// to the generic parser. On text matching multiple banks' keywords the
// earlier-listed bank wins.
func (s *Selector) Select(text string) Parser {
	for _, p := range s.parsers {
		if p.CanParse(text) {
			return p
		}
	}
	return s.generic
}
