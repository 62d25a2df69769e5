package bot

import (
	"fmt"

	"recipe-bot/internal/core/recipe"
)

// 回呼資料
const (
	callbackMealPrefix = "meal:"
	callbackUp         = "fb:up"
	callbackDown       = "fb:down"
	callbackRestart    = "restart"
)

// 使用者可見的文字
const (
	welcomeText = "👋 *Привет! Я NamutiFoodBot.*\n\n" +
		"Не хочешь докупать продукты? Помогу приготовить еду из того, что осталось в холодильнике.\n\n" +
		"Сначала выбери тип приёма пищи:"

	placeholderText    = "⏳ _Готовлю рецепты…_"
	retryProgressText  = "⏳ _Готовлю рецепты… ещё немного_"
	backupProgressText = "⏳ _Почти готово, пробую ещё раз…_"
	failureNotice      = "❌ Не удалось сгенерировать рецепты. Попробуйте позже."
	formatErrorNotice  = "❌ Ошибка форматирования сообщения. Попробуйте снова."
	tooManyRequests    = "⚠️ Слишком много сообщений. Подождите 1 минуту и попробуйте снова."
	noIngredientsText  = "Не вижу ингредиентов. Пример: _курица, рис, брокколи_"
	feedbackThanks     = "🙏 Спасибо за оценку! Нажмите «/start», чтобы начать заново."
	feedbackAnswer     = "Спасибо!"
	unrecognizedText   = "Я вас не понял 🤖\nНажмите /start или /help"
	pongText           = "pong 🟢"
)

func helpText(maxProducts int) string {
	return "ℹ️ *Как пользоваться:*\n" +
		"1) Выбери: завтрак / обед / ужин / «удиви меня».\n" +
		"2) Перечисли ингредиенты через запятую — я предложу несколько простых рецептов.\n" +
		fmt.Sprintf("3) Максимум %d ингредиентов.\n", maxProducts) +
		"4) Я печатаю рецепты по мере генерации.\n"
}

func tooManyIngredientsText(max int) string {
	return fmt.Sprintf("⚠️ Слишком много позиций. Максимум %d.", max)
}

func chatIDText(chatID int64) string {
	return fmt.Sprintf("Ваш chat_id: `%d`", chatID)
}

func mealChosenText(meal recipe.MealCategory) string {
	return recipe.Header(meal) + "Напишите список ингредиентов через запятую.\n" +
		"_Пример_: `яйца, сыр, томаты` или `курица и рис, брокколи`."
}

// mealKeyboard 2x2 餐別鍵盤
func mealKeyboard() Keyboard {
	cats := recipe.Categories()
	kb := make(Keyboard, 0, 2)
	for i := 0; i < len(cats); i += 2 {
		row := []Button{}
		for _, m := range cats[i:min(i+2, len(cats))] {
			row = append(row, Button{Text: m.Label(), Data: callbackMealPrefix + string(m)})
		}
		kb = append(kb, row)
	}
	return kb
}

// feedbackKeyboard 評價與重新開始
func feedbackKeyboard() Keyboard {
	return Keyboard{
		{{Text: "👍", Data: callbackUp}, {Text: "👎", Data: callbackDown}},
		{{Text: "🔁 Новый запрос", Data: callbackRestart}},
	}
}
