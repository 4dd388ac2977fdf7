package parser

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cliohq/statement-worker/internal/models"
)

// CathayUnitedParser handles Cathay United Bank (國泰世華) credit card
// statements. Cathay prefixes amounts with NT$ and uses 結帳日 for the
// statement date.
type CathayUnitedParser struct {
	Now func() time.Time
}

const (
	cathayBankName      = "Cathay United Bank"
	cathayDueOffsetDays = 15
)

var cathayKeywords = []string{"國泰世華", "Cathay", "CUB", "世華", "Cathay United"}

var (
	cathayTotalAmountPatterns = compilePatterns(
		`(?i)本期應繳金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)本期應繳總額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)應繳總金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)本期繳款總額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)繳款總額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
	)
	cathayMinimumDuePatterns = compilePatterns(
		`(?i)最低應繳金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)最低應繳款項[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)最低繳款金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
	)
	cathayStatementDatePatterns = compilePatterns(
		`(?i)結帳日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)帳單日期[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)結帳日期[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(\d{4}[/-]\d{1,2}[/-]\d{1,2})\s*結帳`,
		`(?i)帳單結算日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
	)
	cathayDueDatePatterns = compilePatterns(
		`(?i)繳款截止日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)最後繳款日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)繳款期限[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)到期日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)繳款截止期限[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
	)
	cathayCardPatterns = compilePatterns(
		`卡號末四碼[\s:]*(\d{4})`,
		`卡號.*[-\s](\d{4})`,
		`信用卡末四碼[\s:]*(\d{4})`,
		`\*{4}[-\s]*(\d{4})`,
		`尾號[\s:]*(\d{4})`,
	)
)

func (p *CathayUnitedParser) BankName() string { return cathayBankName }

// CanParse reports whether the text looks like a Cathay United statement.
func (p *CathayUnitedParser) CanParse(text string) bool {
	return containsAnyKeyword(text, cathayKeywords)
}

// Parse extracts a bill from Cathay United statement text.
func (p *CathayUnitedParser) Parse(text string) *models.ParsedBill {
	text = cleanText(text)

	cardLastFour := extractCardLastFour(text, cathayCardPatterns)
	if cardLastFour == "" {
		cardLastFour = models.UnknownCardLastFour
	}

	statementDate := extractDate(text, cathayStatementDatePatterns)
	dueDate := extractDate(text, cathayDueDatePatterns)

	statementFound := statementDate != nil
	dueFound := dueDate != nil

	if statementDate == nil {
		d := dateNow(p.Now)
		statementDate = &d
	}
	if dueDate == nil {
		d := statementDate.AddDate(0, 0, cathayDueOffsetDays)
		dueDate = &d
	}

	totalAmount := extractAmount(text, cathayTotalAmountPatterns)
	minimumDue := extractAmount(text, cathayMinimumDuePatterns)
	if totalAmount == nil {
		zero := decimal.Zero
		totalAmount = &zero
	}

	bill := &models.ParsedBill{
		BankName:       cathayBankName,
		CardLastFour:   cardLastFour,
		StatementDate:  *statementDate,
		StatementMonth: statementDate.Format("2006-01"),
		DueDate:        *dueDate,
		TotalAmountDue: *totalAmount,
		MinimumDue:     minimumDue,
		Currency:       "TWD",
		RawText:        truncateRunes(text, 1000),
	}
	bill.ConfidenceScore = bankConfidence(bill)
	bill.ExtractedFields = extractedFieldNames(bill, statementFound, dueFound)
	return bill
}
