package recipe

import "strings"

// MealCategory 餐別，選定後在整個對話中不變
type MealCategory string

const (
	Breakfast MealCategory = "Завтрак"
	Lunch     MealCategory = "Обед"
	Dinner    MealCategory = "Ужин"
	Surprise  MealCategory = "Удиви меня"
)

// Categories 依鍵盤順序返回所有餐別
func Categories() []MealCategory {
	return []MealCategory{Breakfast, Lunch, Dinner, Surprise}
}

// ParseMeal 解析回呼資料中的餐別
func ParseMeal(s string) (MealCategory, bool) {
	s = strings.TrimSpace(s)
	for _, m := range Categories() {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Emoji 餐別圖示，未知餐別使用骰子
func (m MealCategory) Emoji() string {
	switch m {
	case Breakfast:
		return "🥐"
	case Lunch:
		return "🍲"
	case Dinner:
		return "🍽"
	default:
		return "🎲"
	}
}

// Label 按鈕文字
func (m MealCategory) Label() string {
	return m.Emoji() + " " + string(m)
}

// Header 回覆標頭
func Header(m MealCategory) string {
	if m == "" {
		m = Surprise
	}
	return m.Emoji() + " *Подбор рецептов* · _" + string(m) + "_\n"
}

// Footer 回覆結尾
func Footer() string {
	return "\n—\nНу как? 👇"
}
