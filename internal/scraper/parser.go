package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Немецкие месяцы, включая сокращения из листингов
	deMonths = map[string]int{
		"januar": 1, "jan": 1, "jänner": 1,
		"februar": 2, "feb": 2,
		"märz": 3, "maerz": 3, "mär": 3, "mrz": 3,
		"april": 4, "apr": 4,
		"mai": 5,
		"juni": 6, "jun": 6,
		"juli": 7, "jul": 7,
		"august": 8, "aug": 8,
		"september": 9, "sep": 9, "sept": 9,
		"oktober": 10, "okt": 10,
		"november": 11, "nov": 11,
		"dezember": 12, "dez": 12,
	}

	deDays = []string{
		"montag", "dienstag", "mittwoch", "donnerstag", "freitag", "samstag", "sonntag",
		"mo.", "di.", "mi.", "do.", "fr.", "sa.", "so.",
	}
	deToday     = []string{"heute", "soeben", "gerade eben"}
	deYesterday = []string{"gestern"}

	relativeRe = regexp.MustCompile(`vor\s+(\d+)\s+(min|minute|minuten|std|stunde|stunden|tag|tagen)\b`)
	isoRe      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	numericRe  = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})?`)
	longRe     = regexp.MustCompile(`(\d{1,2})\.?\s+([a-zäöü]+)\.?\s*(\d{4})?`)
)

// DateParser разбирает дату из листинга немецких новостных сайтов
// и возвращает время в UTC с обнулённым временем суток.
type DateParser struct {
	now func() time.Time
}

func NewDateParser() *DateParser {
	return &DateParser{now: time.Now}
}

func (dp *DateParser) today() time.Time {
	return dp.now().UTC().Truncate(24 * time.Hour)
}

func (dp *DateParser) Parse(dateStr string) (time.Time, error) {
	dateStr = strings.ToLower(strings.TrimSpace(dateStr))
	if dateStr == "" || dateStr == strings.ToLower(Sentinel) {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	for _, day := range deDays {
		dateStr = strings.ReplaceAll(dateStr, day, "")
	}
	dateStr = strings.Trim(strings.TrimSpace(dateStr), ",")
	dateStr = strings.TrimSpace(dateStr)

	for _, today := range deToday {
		if strings.Contains(dateStr, today) {
			return dp.today(), nil
		}
	}
	for _, yesterday := range deYesterday {
		if strings.Contains(dateStr, yesterday) {
			return dp.today().AddDate(0, 0, -1), nil
		}
	}

	if m := relativeRe.FindStringSubmatch(dateStr); m != nil {
		return dp.parseRelative(m[1], m[2])
	}

	if m := isoRe.FindStringSubmatch(dateStr); m != nil {
		return buildDate(m[1], m[2], m[3])
	}

	if m := numericRe.FindStringSubmatch(dateStr); m != nil {
		year := m[3]
		if year == "" {
			year = strconv.Itoa(dp.now().UTC().Year())
		} else if len(year) == 2 {
			year = "20" + year
		}
		return buildDate(year, m[2], m[1])
	}

	if m := longRe.FindStringSubmatch(dateStr); m != nil {
		month, ok := deMonths[m[2]]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown month: %s", m[2])
		}
		year := m[3]
		if year == "" {
			year = strconv.Itoa(dp.now().UTC().Year())
		}
		return buildDate(year, strconv.Itoa(month), m[1])
	}

	return time.Time{}, fmt.Errorf("unable to parse date (DE): %s", dateStr)
}

func (dp *DateParser) parseRelative(amountStr, unit string) (time.Time, error) {
	amount, err := parseIntSafe(amountStr)
	if err != nil {
		return time.Time{}, err
	}

	now := dp.now().UTC()
	switch {
	case strings.HasPrefix(unit, "min"):
		now = now.Add(-time.Duration(amount) * time.Minute)
	case strings.HasPrefix(unit, "st"):
		now = now.Add(-time.Duration(amount) * time.Hour)
	default:
		now = now.AddDate(0, 0, -amount)
	}
	return now.Truncate(24 * time.Hour), nil
}

func buildDate(yearStr, monthStr, dayStr string) (time.Time, error) {
	year, err := parseIntSafe(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year: %q: %w", yearStr, err)
	}
	month, err := parseIntSafe(monthStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month: %q: %w", monthStr, err)
	}
	day, err := parseIntSafe(dayStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day: %q: %w", dayStr, err)
	}

	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid day: %d", day)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month: %d", month)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func parseIntSafe(s string) (int, error) {
	result, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q as int: %w", s, err)
	}
	return result, nil
}
