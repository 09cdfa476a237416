package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"news-archive-parser/internal/normalize"
)

// SelectorExtractor извлекает поля карточки по CSS-селекторам.
// Отсутствующие поля всегда заполняются Sentinel, так что у всех записей
// одного источника одинаковый набор полей.
type SelectorExtractor struct {
	fields     []FieldSpec
	normalizer *normalize.Normalizer
}

func NewSelectorExtractor(fields []FieldSpec, opts normalize.Options) *SelectorExtractor {
	copied := make([]FieldSpec, len(fields))
	copy(copied, fields)
	return &SelectorExtractor{
		fields:     copied,
		normalizer: normalize.NewNormalizer(opts),
	}
}

// Extract никогда не возвращает ошибку: промах по полю даёт Sentinel
func (s *SelectorExtractor) Extract(item *goquery.Selection, base *url.URL) Record {
	fields := make([]Field, 0, len(s.fields))

	for _, spec := range s.fields {
		value := s.lookup(item, spec)
		if value != "" && spec.Kind == KindURL {
			value = resolveURL(base, value)
		}
		if value != "" && spec.Kind != KindURL {
			value = s.normalizer.TruncatePreview(value)
		}
		if value == "" {
			value = Sentinel
		}
		fields = append(fields, Field{Name: spec.Name, Value: value})
	}

	return NewRecord(fields)
}

func (s *SelectorExtractor) lookup(item *goquery.Selection, spec FieldSpec) string {
	if len(spec.Selectors) == 0 {
		return s.valueOf(item.First(), spec.Attr)
	}

	// Пробуем селекторы по очереди
	for _, selector := range spec.Selectors {
		if v := s.valueOf(item.Find(selector).First(), spec.Attr); v != "" {
			return v
		}
	}
	return ""
}

func (s *SelectorExtractor) valueOf(sel *goquery.Selection, attr string) string {
	if sel.Length() == 0 {
		return ""
	}
	if attr != "" {
		v, exists := sel.Attr(attr)
		if !exists {
			return ""
		}
		return strings.TrimSpace(v)
	}
	return s.normalizer.SelectionText(sel)
}

// resolveURL делает ссылку абсолютной; неразрешимая ссылка → "" (дальше станет Sentinel)
func resolveURL(base *url.URL, raw string) string {
	raw = normalize.NormalizeURL(raw)
	if raw == "" {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() || ref.Host == "" {
		return ""
	}
	return ref.String()
}
