package parser

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cliohq/statement-worker/internal/models"
)

// CTBCParser handles CTBC (中國信託) credit card statements.
//
// CTBC statements label the payable amount 本期應繳金額 and the cutoff date
// 繳款截止日, with English variants on dual-language layouts. Older paper
// statements print the statement date in the minguo calendar.
type CTBCParser struct {
	// Now overrides the clock used for date defaults; nil means time.Now.
	Now func() time.Time
}

const (
	ctbcBankName      = "CTBC"
	ctbcDueOffsetDays = 20
)

var ctbcKeywords = []string{"中國信託", "CTBC", "中信", "Chinatrust", "信用卡帳單"}

// Pattern tables, most specific phrasing first.
var (
	ctbcTotalAmountPatterns = compilePatterns(
		`(?i)本期應繳金額[\s:]*\$?([\d,]+\.?\d*)`,
		`(?i)應繳總金額[\s:]*\$?([\d,]+\.?\d*)`,
		`(?i)Total Amount Due[\s:]*\$?([\d,]+\.?\d*)`,
		`(?i)本期應繳總額[\s:]*\$?([\d,]+\.?\d*)`,
	)
	ctbcMinimumDuePatterns = compilePatterns(
		`(?i)最低應繳金額[\s:]*\$?([\d,]+\.?\d*)`,
		`(?i)最低應繳款[\s:]*\$?([\d,]+\.?\d*)`,
		`(?i)Minimum Payment[\s:]*\$?([\d,]+\.?\d*)`,
	)
	ctbcStatementDatePatterns = compilePatterns(
		`(?i)帳單日期[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)結帳日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)Statement Date[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
	)
	ctbcDueDatePatterns = compilePatterns(
		`(?i)繳款截止日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)繳款期限[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)最後繳款日[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)Payment Due Date[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
		`(?i)繳款截止[\s:]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
	)
	ctbcCardPatterns = compilePatterns(
		`卡號末四碼[\s:]*(\d{4})`,
		`卡號.*?(\d{4})`,
		`\*{4}[-\s]*(\d{4})`,
		`末四碼[\s:]*(\d{4})`,
	)
)

func (p *CTBCParser) BankName() string { return ctbcBankName }

// CanParse reports whether the text looks like a CTBC statement.
func (p *CTBCParser) CanParse(text string) bool {
	return containsAnyKeyword(text, ctbcKeywords)
}

// Parse extracts a bill from CTBC statement text.
func (p *CTBCParser) Parse(text string) *models.ParsedBill {
	text = cleanText(text)

	cardLastFour := extractCardLastFour(text, ctbcCardPatterns)
	if cardLastFour == "" {
		cardLastFour = models.UnknownCardLastFour
	}

	statementDate := extractDate(text, ctbcStatementDatePatterns)
	if statementDate == nil {
		// Older CTBC layouts use the Taiwanese calendar
		statementDate = parseMinguoDate(text)
	}
	dueDate := extractDate(text, ctbcDueDatePatterns)

	statementFound := statementDate != nil
	dueFound := dueDate != nil

	if statementDate == nil {
		d := dateNow(p.Now)
		statementDate = &d
	}
	if dueDate == nil {
		d := statementDate.AddDate(0, 0, ctbcDueOffsetDays)
		dueDate = &d
	}

	totalAmount := extractAmount(text, ctbcTotalAmountPatterns)
	minimumDue := extractAmount(text, ctbcMinimumDuePatterns)
	if totalAmount == nil {
		zero := decimal.Zero
		totalAmount = &zero
	}

	bill := &models.ParsedBill{
		BankName:       ctbcBankName,
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
