package recipe

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"recipe-bot/internal/pkg/common"
)

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Duplicates removed", "яйца, сыр, яйца", []string{"яйца", "сыр"}},
		{"Case folded", "Яйца, ЯЙЦА, сыр", []string{"яйца", "сыр"}},
		{"Mixed separators", "курица и рис; брокколи\nсыр\r\nлук", []string{"курица", "рис", "брокколи", "сыр", "лук"}},
		{"Conjunction only as a word", "киви, изюм и инжир", []string{"киви", "изюм", "инжир"}},
		{"Capital conjunction", "Курица И рис", []string{"курица", "рис"}},
		{"Inner whitespace collapsed", "  зелёный   лук ,  сыр  ", []string{"зелёный лук", "сыр"}},
		{"Only separators", " , ;; и \n", []string{}},
		{"Empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if !equalStrings(got, tt.want) {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"яйца, сыр, яйца",
		"Курица И рис; брокколи\nСЫР",
		"  помидоры ,огурцы,, Помидоры и  лук ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(strings.Join(once, ", "))
		if !equalStrings(once, twice) {
			t.Errorf("Expected idempotent normalization for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Run("Empty list", func(t *testing.T) {
		err := Validate(nil, 15)
		if !errors.Is(err, ErrNoIngredients) {
			t.Errorf("Expected ErrNoIngredients, got %v", err)
		}
		if !common.IsValidationError(err) {
			t.Error("Expected validation error")
		}
	})

	t.Run("Sixteen items rejected citing the maximum", func(t *testing.T) {
		items := make([]string, 16)
		for i := range items {
			items[i] = fmt.Sprintf("продукт%d", i)
		}
		list := Normalize(strings.Join(items, ", "))
		if len(list) != 16 {
			t.Fatalf("Expected 16 distinct items, got %d", len(list))
		}

		err := Validate(list, 15)
		var tooMany *TooManyIngredientsError
		if !errors.As(err, &tooMany) {
			t.Fatalf("Expected TooManyIngredientsError, got %v", err)
		}
		if tooMany.Max != 15 || tooMany.Got != 16 {
			t.Errorf("Expected max 15 got 16, got %+v", tooMany)
		}
		if !strings.Contains(err.Error(), "15") {
			t.Errorf("Expected error to cite the maximum, got %q", err.Error())
		}
		if !common.IsValidationError(err) {
			t.Error("Expected validation error")
		}
	})

	t.Run("At the maximum", func(t *testing.T) {
		list := make([]string, 15)
		if err := Validate(list, 15); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}

func TestMeal(t *testing.T) {
	if m, ok := ParseMeal("Удиви меня"); !ok || m != Surprise {
		t.Errorf("Expected Surprise, got %q", m)
	}
	if _, ok := ParseMeal("Полдник"); ok {
		t.Error("Expected unknown meal to be rejected")
	}
	if got := Header(Breakfast); got != "🥐 *Подбор рецептов* · _Завтрак_\n" {
		t.Errorf("Unexpected header %q", got)
	}
	if got := Header(""); !strings.HasPrefix(got, "🎲") {
		t.Errorf("Expected default emoji, got %q", got)
	}
	if Footer() != "\n—\nНу как? 👇" {
		t.Errorf("Unexpected footer %q", Footer())
	}
	if len(Categories()) != 4 {
		t.Errorf("Expected 4 categories")
	}
}
