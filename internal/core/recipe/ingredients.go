package recipe

import (
	"fmt"
	"strings"

	"recipe-bot/internal/pkg/common"
)

// conjunction 作為分隔符的獨立連接詞
const conjunction = "и"

var errValidation = common.NewValidationError("invalid ingredient list")

// ErrNoIngredients 正規化後沒有任何食材
var ErrNoIngredients = fmt.Errorf("no ingredients: %w", errValidation)

// TooManyIngredientsError 食材數量超過上限
type TooManyIngredientsError struct {
	Max int
	Got int
}

func (e *TooManyIngredientsError) Error() string {
	return fmt.Sprintf("too many ingredients: %d, maximum is %d", e.Got, e.Max)
}

// Unwrap 讓 common.IsValidationError 成立
func (e *TooManyIngredientsError) Unwrap() error {
	return errValidation
}

// Normalize 將自由文字轉為小寫、去重且保持順序的食材清單。
// 逗號、分號、換行與獨立的「и」皆視為分隔符。
func Normalize(text string) []string {
	lowered := strings.ToLower(text)
	parts := strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	add := func(words []string) {
		if len(words) == 0 {
			return
		}
		item := strings.Join(words, " ")
		if _, ok := seen[item]; ok {
			return
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}

	for _, part := range parts {
		var words []string
		for _, w := range strings.Fields(part) {
			if w == conjunction {
				add(words)
				words = nil
				continue
			}
			words = append(words, w)
		}
		add(words)
	}
	return out
}

// Validate 檢查清單非空且不超過 max
func Validate(list []string, max int) error {
	if len(list) == 0 {
		return ErrNoIngredients
	}
	if max > 0 && len(list) > max {
		return &TooManyIngredientsError{Max: max, Got: len(list)}
	}
	return nil
}
