package recipe

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxTitleLen 標題行長度上限（不含）
const maxTitleLen = 100

var (
	stepNumber    = regexp.MustCompile(`^\d+[\)\.]`)
	sectionLabels = []string{"Шаги:", "Ингредиенты:", "_Совет:"}
)

// TitledLine 一行文字與是否應加粗
type TitledLine struct {
	Line      string
	Emphasize bool
}

// MarkDishTitles 依行形判斷菜名：非空、非清單、非段落標籤、未加粗、
// 位於開頭或空行之後且長度未達上限。
func MarkDishTitles(lines []string) []TitledLine {
	out := make([]TitledLine, len(lines))
	for i, line := range lines {
		prevBlank := i == 0 || strings.TrimSpace(lines[i-1]) == ""
		out[i] = TitledLine{Line: line, Emphasize: prevBlank && looksLikeTitle(line)}
	}
	return out
}

func looksLikeTitle(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" || utf8.RuneCountInString(s) >= maxTitleLen {
		return false
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "*") {
		return false
	}
	if stepNumber.MatchString(s) {
		return false
	}
	for _, label := range sectionLabels {
		if strings.HasPrefix(s, label) {
			return false
		}
	}
	return true
}

// FormatDishNames 將菜名行包成 *粗體*
func FormatDishNames(text string) string {
	lines := strings.Split(text, "\n")
	marked := MarkDishTitles(lines)

	out := make([]string, len(marked))
	for i, m := range marked {
		if m.Emphasize {
			out[i] = "*" + strings.TrimSpace(m.Line) + "*"
		} else {
			out[i] = m.Line
		}
	}
	return strings.Join(out, "\n")
}
