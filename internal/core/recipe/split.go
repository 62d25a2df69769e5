package recipe

import (
	"strings"
	"unicode/utf16"
)

// TextLen 以 UTF-16 編碼單位計算長度，與聊天平台的訊息上限計法一致
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// SplitChunks 以行為界切分文字，每段不超過 limit 個 UTF-16 單位；
// 各段依序串接後與輸入完全相同。單行超過上限時才在行內切開。
func SplitChunks(text string, limit int) []string {
	if limit <= 0 || TextLen(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	size := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		n := TextLen(line)
		if size+n > limit {
			flush()
		}
		if n > limit {
			pieces := hardSplit(line, limit)
			chunks = append(chunks, pieces[:len(pieces)-1]...)
			last := pieces[len(pieces)-1]
			current.WriteString(last)
			size = TextLen(last)
			continue
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return chunks
}

// hardSplit 在字元邊界切開單行，代理對不會被拆開
func hardSplit(line string, limit int) []string {
	var pieces []string
	start, size := 0, 0
	for i, r := range line {
		n := runeUnits(r)
		if size+n > limit && i > start {
			pieces = append(pieces, line[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(pieces, line[start:])
}
