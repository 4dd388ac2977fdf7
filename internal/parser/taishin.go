package parser

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cliohq/statement-worker/internal/models"
)

// TaishinParser handles Taishin Bank (台新銀行) credit card statements,
// including the Richart co-branded cards.
type TaishinParser struct {
	Now func() time.Time
}

const (
	taishinBankName      = "Taishin Bank"
	taishinDueOffsetDays = 20
)

var taishinKeywords = []string{"台新", "Taishin", "TSBank", "Richart", "台新銀行"}

var (
	taishinTotalAmountPatterns = compilePatterns(
		`(?i)本期應繳總金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)本期應繳金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)應繳總額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)繳款總額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)本期總應繳金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
	)
	taishinMinimumDuePatterns = compilePatterns(
		`(?i)最低應繳金額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)最低應繳款[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
		`(?i)最低繳款額[\s:]*[NT$]*\s*([\d,]+\.?\d*)`,
	)
	taishinStatementDatePatterns = compilePatterns(
		`(?i)結帳日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)帳單日期[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)結帳日期[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(\d{4}[/-]\d{1,2}[/-]\d{1,2})\s*結帳`,
		`(?i)帳單結算日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
	)
	taishinDueDatePatterns = compilePatterns(
		`(?i)繳款截止日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)最後繳款日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)繳款期限[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)繳款截止期限[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)最後繳款期限[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
	)
	taishinCardPatterns = compilePatterns(
		`卡號末四碼[\s:]*(\d{4})`,
		`信用卡末四碼[\s:]*(\d{4})`,
		`卡號.*[-\s](\d{4})`,
		`\*{4}[-\s]*(\d{4})`,
		`尾號[\s:]*(\d{4})`,
		`卡片末四碼[\s:]*(\d{4})`,
	)
)

func (p *TaishinParser) BankName() string { return taishinBankName }

// CanParse reports whether the text looks like a Taishin statement.
func (p *TaishinParser) CanParse(text string) bool {
	return containsAnyKeyword(text, taishinKeywords)
}

// Parse extracts a bill from Taishin statement text.
func (p *TaishinParser) Parse(text string) *models.ParsedBill {
	text = cleanText(text)

	cardLastFour := extractCardLastFour(text, taishinCardPatterns)
	if cardLastFour == "" {
		cardLastFour = models.UnknownCardLastFour
	}

	statementDate := extractDate(text, taishinStatementDatePatterns)
	dueDate := extractDate(text, taishinDueDatePatterns)

	statementFound := statementDate != nil
	dueFound := dueDate != nil

	if statementDate == nil {
		d := dateNow(p.Now)
		statementDate = &d
	}
	if dueDate == nil {
		d := statementDate.AddDate(0, 0, taishinDueOffsetDays)
		dueDate = &d
	}

	totalAmount := extractAmount(text, taishinTotalAmountPatterns)
	minimumDue := extractAmount(text, taishinMinimumDuePatterns)
	if totalAmount == nil {
		zero := decimal.Zero
		totalAmount = &zero
	}

	bill := &models.ParsedBill{
		BankName:       taishinBankName,
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
