package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var spaceRun = regexp.MustCompile(`\s+`)

// Options управляет очисткой текстовых полей карточек
type Options struct {
	TrimNBSP        bool `yaml:"trim_nbsp"`
	CollapseSpaces  bool `yaml:"collapse_spaces"`
	MaxPreviewChars int  `yaml:"max_preview_chars"`
}

type Normalizer struct {
	opts Options
}

func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// CleanText приводит текст поля к одной строке без лишних пробелов
func (n *Normalizer) CleanText(text string) string {
	if n.opts.TrimNBSP {
		// NBSP (\u00A0) → обычный пробел
		text = strings.ReplaceAll(text, "\u00A0", " ")
	}

	if n.opts.CollapseSpaces {
		text = spaceRun.ReplaceAllString(text, " ")
	}

	return strings.TrimSpace(text)
}

// SelectionText извлекает текст из фрагмента, выбрасывая script/style
func (n *Normalizer) SelectionText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	clone := sel.Clone()
	clone.Find("script, style, noscript").Remove()

	return n.CleanText(clone.Text())
}

// TruncatePreview обрезает текст до MaxPreviewChars (0: без ограничения)
func (n *Normalizer) TruncatePreview(text string) string {
	limit := n.opts.MaxPreviewChars
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	// Оставляем место под "…"
	truncated := string(runes[:limit-1])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		return truncated[:lastSpace] + "…"
	}

	return truncated + "…"
}

// NormalizeURL убирает пробелы по краям и якорь
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return urlStr
}
