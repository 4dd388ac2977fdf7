package parser

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cliohq/statement-worker/internal/models"
)

// GenericParser is the always-accepting fallback for statements no bank
// parser recognizes. It runs looser bilingual patterns (keyword stems plus
// currency markers) instead of bank-specific phrasing, so its confidence is
// hard-capped: a generic parse must never look as trustworthy as a
// specialized one.
type GenericParser struct {
	Now func() time.Time
}

const (
	unknownBankName      = "Unknown Bank"
	genericDueOffsetDays = 20

	// Upper bound on generic-parse confidence
	genericConfidenceCap = 0.60
	// Below this (pre-cap) the result is marked for review outright
	genericReviewFloor = 0.50
)

// Looser weights for the generic confidence model.
const (
	genericWeightBankDetected  = 0.05
	genericWeightCardLastFour  = 0.05
	genericWeightStatementDate = 0.10
	genericWeightDueDate       = 0.15
	genericWeightTotalAmount   = 0.25
	genericWeightMinimumDue    = 0.10
)

var (
	genericTotalAmountPatterns = compilePatterns(
		`(?i)(?:應繳|應付|繳款|payment|total|amount).*?(?:金額|amount|total)[\s:]*[NT$NTD]*\s*([\d,]+\.?\d*)`,
		`(?i)(?:本期|當期|this|current).*?(?:金額|amount)[\s:]*[NT$NTD]*\s*([\d,]+\.?\d*)`,
		`[$¥€£]\s*([\d,]+\.?\d*)`,
		`([\d,]+\.?\d*)\s*(?:元|圓|TWD|NTD?)`,
	)
	genericMinimumDuePatterns = compilePatterns(
		`(?i)(?:最低|minimum).*?(?:金額|amount|payment)[\s:]*[NT$NTD]*\s*([\d,]+\.?\d*)`,
		`(?i)(?:最低|minimum).*?(?:應繳|payment)[\s:]*[NT$NTD]*\s*([\d,]+\.?\d*)`,
	)
	genericStatementDatePatterns = compilePatterns(
		`(?i)(?:結帳|帳單|statement|billing|cutoff).*?(?:日期|date|日)[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)(\d{4}[/-]\d{1,2}[/-]\d{1,2}).*?(?:結帳|statement)`,
	)
	genericDueDatePatterns = compilePatterns(
		`(?i)(?:繳款|付款|payment|due).*?(?:日期|截止|期限|date|deadline)[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)(?:最後繳款日|payment due|due date)[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)(\d{4}[/-]\d{1,2}[/-]\d{1,2}).*?(?:繳款|付款|payment)`,
	)
	genericCardPatterns = compilePatterns(
		`(?i)(?:卡號|card|信用卡).*?(?:末|尾|last).*?(\d{4})`,
		`(?i)(?:末|尾|last)\s*(?:四碼|4碼|四|4)\s*[\s:]*(\d{4})`,
		`\*{4}[-\s]*(\d{4})`,
		`(?i)xxxx[-\s]*(\d{4})`,
		`####[-\s]*(\d{4})`,
	)
)

func (p *GenericParser) BankName() string { return unknownBankName }

// CanParse always returns true so the selector never fails to find a parser.
func (p *GenericParser) CanParse(text string) bool { return true }

// Parse extracts a bill using generic patterns. The bank detector still runs
// so the result carries a bank label for diagnostics even without
// bank-specific extraction.
func (p *GenericParser) Parse(text string) *models.ParsedBill {
	text = cleanText(text)

	bankName := DetectBank(text)
	if bankName == "" {
		bankName = unknownBankName
	}

	cardLastFour := extractCardLastFour(text, genericCardPatterns)
	if cardLastFour == "" {
		cardLastFour = models.UnknownCardLastFour
	}

	statementDate := extractDate(text, genericStatementDatePatterns)
	dueDate := extractDate(text, genericDueDatePatterns)

	statementFound := statementDate != nil
	dueFound := dueDate != nil

	if statementDate == nil {
		d := dateNow(p.Now)
		statementDate = &d
	}
	if dueDate == nil {
		d := statementDate.AddDate(0, 0, genericDueOffsetDays)
		dueDate = &d
	}

	totalAmount := extractAmount(text, genericTotalAmountPatterns)
	minimumDue := extractAmount(text, genericMinimumDuePatterns)
	if totalAmount == nil {
		zero := decimal.Zero
		totalAmount = &zero
	}

	bill := &models.ParsedBill{
		BankName:       bankName,
		CardLastFour:   cardLastFour,
		StatementDate:  *statementDate,
		StatementMonth: statementDate.Format("2006-01"),
		DueDate:        *dueDate,
		TotalAmountDue: *totalAmount,
		MinimumDue:     minimumDue,
		Currency:       "TWD",
		RawText:        truncateRunes(text, 500),
	}

	score := genericConfidence(bill)
	bill.ConfidenceScore = min(genericConfidenceCap, score)
	if bill.ConfidenceScore < genericReviewFloor {
		bill.ExtractedFields = []string{models.NeedsReviewMarker}
	} else {
		bill.ExtractedFields = extractedFieldNames(bill, statementFound, dueFound)
	}
	return bill
}

func genericConfidence(b *models.ParsedBill) float64 {
	score := 0.0

	if b.BankName != unknownBankName {
		score += genericWeightBankDetected
	}
	if b.CardLastFour != models.UnknownCardLastFour {
		score += genericWeightCardLastFour
	}
	if !b.StatementDate.IsZero() {
		score += genericWeightStatementDate
	}
	if !b.DueDate.IsZero() {
		score += genericWeightDueDate
	}
	if b.TotalAmountDue.IsPositive() {
		score += genericWeightTotalAmount
	}
	if b.MinimumDue != nil {
		score += genericWeightMinimumDue
	}

	return clampScore(score)
}
