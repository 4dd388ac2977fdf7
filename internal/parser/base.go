package parser

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"

	"github.com/cliohq/statement-worker/internal/models"
)

// clock supplies "now" for date defaults. Parsers fall back to time.Now when
// nil so the zero-value parser stays usable; tests inject a fixed clock.
type clock func() time.Time

func dateNow(c clock) time.Time {
	t := time.Now()
	if c != nil {
		t = c()
	}
	return dateOf(t)
}

// dateOf truncates a timestamp to a calendar date in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// extractAmount tries each pattern in order and returns the first capture that
// parses as a decimal after stripping thousands separators. Unparseable
// matches are skipped, not fatal. Returns nil when nothing matches.
func extractAmount(text string, patterns []*regexp.Regexp) *decimal.Decimal {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		return &amt
	}
	return nil
}

var dateLayouts = []string{"2006-1-2", "2006/1/2", "20060102"}

// extractDate tries each pattern in order and parses the first capture with
// the accepted date layouts. Chinese year/month/day markers are normalized to
// hyphens before layout matching. Returns nil when nothing matches.
func extractDate(text string, patterns []*regexp.Regexp) *time.Time {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		d, err := parseDateString(m[1])
		if err != nil {
			continue
		}
		return &d
	}
	return nil
}

func parseDateString(s string) (time.Time, error) {
	s = strings.ReplaceAll(s, "年", "-")
	s = strings.ReplaceAll(s, "月", "-")
	s = strings.ReplaceAll(s, "日", "")
	s = strings.TrimSpace(s)

	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return dateOf(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Minguo (Republic of China) calendar marker: 民國 113 年 01 月 15 日.
var minguoPattern = regexp.MustCompile(`民國\s*(\d{3})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})`)

// parseMinguoDate converts a minguo date found in text to Gregorian by adding
// 1911 to the year (minguo 113 = 2024). Returns nil when no valid date is
// present.
func parseMinguoDate(text string) *time.Time {
	m := minguoPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	year := atoi(m[1]) + 1911
	month := atoi(m[2])
	day := atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range values; reject those
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return nil
	}
	return &d
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

var fourDigits = regexp.MustCompile(`^\d{4}$`)

// extractCardLastFour returns the first capture that is exactly four digits,
// or "" when no pattern yields one.
func extractCardLastFour(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if fourDigits.MatchString(m[1]) {
			return m[1]
		}
	}
	return ""
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanText normalizes extracted statement text before pattern matching:
// full-width ASCII variants are folded to their narrow forms (OCR on
// Taiwanese statements routinely emits ：＄１２３), common OCR artifact glyphs
// are mapped to ASCII, and whitespace runs collapse to a single space.
func cleanText(text string) string {
	text = width.Narrow.String(text)
	text = strings.ReplaceAll(text, "｜", "|")
	text = strings.ReplaceAll(text, "—", "-")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Field weights for the bank-specific confidence model. The total-amount
// penalty is applied when the business-critical amount is missing, so a bill
// missing only the total scores meaningfully lower than one missing only the
// minimum due.
const (
	weightBankName      = 0.10
	weightCardLastFour  = 0.10
	weightStatementDate = 0.15
	weightDueDate       = 0.20
	weightTotalAmount   = 0.30
	penaltyTotalMissing = 0.20
	weightMinimumDue    = 0.15
)

// bankConfidence scores a bill parsed by a bank-specific parser. The result
// is rounded to two decimals and clamped to [0, 1].
func bankConfidence(b *models.ParsedBill) float64 {
	score := 0.0

	// Bank identity is established by the parser that recognized the text
	score += weightBankName

	if b.CardLastFour != "" && b.CardLastFour != models.UnknownCardLastFour {
		score += weightCardLastFour
	}
	if !b.StatementDate.IsZero() {
		score += weightStatementDate
	}
	if !b.DueDate.IsZero() {
		score += weightDueDate
	}
	if b.TotalAmountDue.IsPositive() {
		score += weightTotalAmount
	} else {
		score -= penaltyTotalMissing
	}
	if b.MinimumDue != nil {
		score += weightMinimumDue
	}

	return clampScore(score)
}

func clampScore(score float64) float64 {
	score = math.Round(score*100) / 100
	return math.Max(0.0, math.Min(1.0, score))
}

// extractedFieldNames lists the successfully extracted fields in a fixed
// order, for diagnostics and the audit trail.
func extractedFieldNames(b *models.ParsedBill, statementFound, dueFound bool) []string {
	fields := []string{}
	if b.CardLastFour != models.UnknownCardLastFour {
		fields = append(fields, "card_last_four")
	}
	if statementFound {
		fields = append(fields, "statement_date")
	}
	if dueFound {
		fields = append(fields, "due_date")
	}
	if b.TotalAmountDue.IsPositive() {
		fields = append(fields, "total_amount_due")
	}
	if b.MinimumDue != nil {
		fields = append(fields, "minimum_due")
	}
	return fields
}

// truncateRunes caps a string at n runes. Statement text is mostly CJK, so
// byte-based truncation would split characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
