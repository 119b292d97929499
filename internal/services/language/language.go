// Package language угадывает язык сообщения пользователя для выбора стиля ответа.
// Точность не гарантируется: результат используется только как подсказка генератору.
package language

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// Коды языков, которые различает бот.
const (
	English  = "en"
	Hindi    = "hi"
	Hinglish = "hinglish"
)

// hinglishMarkers частые слова хинди в латинской транскрипции.
var hinglishMarkers = map[string]struct{}{
	"hai": {}, "hain": {}, "kya": {}, "nahi": {}, "nahin": {}, "tum": {}, "tumhe": {},
	"tera": {}, "teri": {}, "mera": {}, "meri": {}, "yaar": {}, "kaise": {}, "kaisi": {},
	"acha": {}, "accha": {}, "haan": {}, "bhi": {}, "mujhe": {}, "kyun": {}, "kuch": {},
	"matlab": {}, "bas": {}, "abhi": {}, "pyaar": {}, "jaan": {}, "aur": {}, "toh": {},
}

// Detector определяет язык текста.
type Detector struct {
	minMarkers int
}

// New создаёт детектор. Для хинглиша достаточно одного маркера в коротком
// сообщении и двух в длинном.
func New() *Detector {
	return &Detector{minMarkers: 2}
}

// Detect возвращает код языка: "hi", "hinglish", код ISO 639-1 для других
// уверенно распознанных языков или "en" по умолчанию.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return English
	}
	if hasScript(text, unicode.Devanagari) {
		return Hindi
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	markers := 0
	for _, w := range words {
		if _, ok := hinglishMarkers[w]; ok {
			markers++
		}
	}
	need := d.minMarkers
	if len(words) <= 4 {
		need = 1
	}
	if markers >= need {
		return Hinglish
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return English
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return English
}

func hasScript(text string, table *unicode.RangeTable) bool {
	for _, r := range text {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}
