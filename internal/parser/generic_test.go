package parser

import "testing"

const genericStatementText = `Credit Card Statement
Statement Date: 2024-05-01
Due Date: 2024-05-20
Total Amount: 5,000
Minimum Payment: 500
Card xxxx 1234`

func TestGenericCanParseAlways(t *testing.T) {
	p := &GenericParser{}
	for _, text := range []string{"", "random noise", "中國信託"} {
		if !p.CanParse(text) {
			t.Errorf("CanParse(%q) = false, want true", text)
		}
	}
}

func TestGenericParseFullStatement(t *testing.T) {
	p := &GenericParser{Now: fixedClock(2024, 6, 1)}
	bill := p.Parse(genericStatementText)

	if bill.BankName != "Unknown Bank" {
		t.Errorf("bank = %q, want Unknown Bank", bill.BankName)
	}
	if bill.CardLastFour != "1234" {
		t.Errorf("card = %q, want 1234", bill.CardLastFour)
	}
	if got := bill.StatementDate.Format("2006-01-02"); got != "2024-05-01" {
		t.Errorf("statement date = %s", got)
	}
	if got := bill.DueDate.Format("2006-01-02"); got != "2024-05-20" {
		t.Errorf("due date = %s", got)
	}
	if bill.TotalAmountDue.String() != "5000" {
		t.Errorf("total = %s, want 5000", bill.TotalAmountDue)
	}
	if bill.MinimumDue == nil || bill.MinimumDue.String() != "500" {
		t.Errorf("minimum due = %v, want 500", bill.MinimumDue)
	}
	// Raw score 0.65, hard-capped
	if bill.ConfidenceScore != 0.6 {
		t.Errorf("confidence = %v, want capped at 0.6", bill.ConfidenceScore)
	}
	if containsField(bill.ExtractedFields, "needs_review") {
		t.Error("rich extraction should not be marked needs_review")
	}
}

func TestGenericParseSparseTextNeedsReview(t *testing.T) {
	p := &GenericParser{Now: fixedClock(2024, 6, 1)}
	bill := p.Parse("completely unstructured text with no billing info")

	// Only the defaulted dates score, well under the review floor
	if bill.ConfidenceScore != 0.25 {
		t.Errorf("confidence = %v, want 0.25", bill.ConfidenceScore)
	}
	if len(bill.ExtractedFields) != 1 || bill.ExtractedFields[0] != "needs_review" {
		t.Errorf("extracted fields = %v, want the needs_review marker", bill.ExtractedFields)
	}
}

func TestGenericConfidenceNeverExceedsCap(t *testing.T) {
	p := &GenericParser{Now: fixedClock(2024, 6, 1)}
	texts := []string{
		genericStatementText,
		"國泰世華 " + genericStatementText,
		"",
	}
	for _, text := range texts {
		bill := p.Parse(text)
		if bill.ConfidenceScore > 0.6 {
			t.Errorf("confidence %v exceeds cap for %.30q", bill.ConfidenceScore, text)
		}
		if bill.ConfidenceScore < 0 || bill.ConfidenceScore > 1 {
			t.Errorf("confidence %v out of range", bill.ConfidenceScore)
		}
	}
}

func TestGenericLabelsDetectedBank(t *testing.T) {
	p := &GenericParser{Now: fixedClock(2024, 6, 1)}
	bill := p.Parse("國泰世華 對帳單 total amount: 900")

	if bill.BankName != "Cathay United Bank" {
		t.Errorf("bank = %q, want Cathay United Bank label", bill.BankName)
	}
}

func TestGenericRawTextTruncated(t *testing.T) {
	long := ""
	for len([]rune(long)) < 1200 {
		long += "noise "
	}
	p := &GenericParser{Now: fixedClock(2024, 6, 1)}
	bill := p.Parse(long)

	if n := len([]rune(bill.RawText)); n > 500 {
		t.Errorf("raw text is %d runes, want at most 500", n)
	}
}
