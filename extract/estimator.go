package extract

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens estimates how many tokens text costs the model.
// Uses tiktoken (cl100k_base) when its encoding data is available and
// falls back to a character-based estimate otherwise, so callers never
// fail on estimation alone.
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return charEstimate(text)
}

// charEstimate 区分 CJK 与 ASCII 字符的启发式估算：
// CJK 约 1.5 字符/token，其余约 4 字符/token。
func charEstimate(text string) int {
	if text == "" {
		return 0
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
