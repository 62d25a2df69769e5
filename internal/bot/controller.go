package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"recipe-bot/internal/core/feedback"
	"recipe-bot/internal/core/ratelimit"
	"recipe-bot/internal/core/recipe"
	"recipe-bot/internal/core/session"
	"recipe-bot/internal/pkg/common"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Controller 對話狀態機：選餐別 → 輸入食材 → 呈現 → 評價或重來
type Controller struct {
	renderer    Renderer
	presenter   *Presenter
	sessions    *session.Store
	gate        *ratelimit.Gate
	tally       *feedback.Tally
	maxProducts int
	now         func() time.Time
}

// NewController 創建控制器
func NewController(renderer Renderer, presenter *Presenter, sessions *session.Store, gate *ratelimit.Gate, tally *feedback.Tally, maxProducts int) *Controller {
	return &Controller{
		renderer:    renderer,
		presenter:   presenter,
		sessions:    sessions,
		gate:        gate,
		tally:       tally,
		maxProducts: maxProducts,
		now:         time.Now,
	}
}

// HandleUpdate 處理一則平台更新
func (c *Controller) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		c.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	}
}

func identityOf(chatID int64, from *tgbotapi.User) string {
	if from != nil {
		return strconv.FormatInt(from.ID, 10)
	}
	return strconv.FormatInt(chatID, 10)
}

// handleMessage 處理文字訊息與指令
func (c *Controller) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	identity := identityOf(chatID, msg.From)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			c.sessions.Set(identity, session.Conversation{State: session.StateChoosingMeal})
			c.send(ctx, chatID, welcomeText, mealKeyboard())
			return
		case "help":
			c.send(ctx, chatID, helpText(c.maxProducts), nil)
			return
		case "ping":
			c.send(ctx, chatID, pongText, nil)
			return
		case "id":
			c.send(ctx, chatID, chatIDText(chatID), nil)
			return
		}
	}

	conv := c.sessions.Get(identity)
	if !c.gate.Admit(identity, c.now()) {
		common.LogInfo("Rate limit exceeded",
			zap.String("code", common.ErrCodeAdmissionDenied),
			zap.String("identity", identity),
		)
		c.send(ctx, chatID, tooManyRequests, nil)
		return
	}

	if conv.State != session.StateEnteringIngredients || msg.IsCommand() {
		c.send(ctx, chatID, unrecognizedText, nil)
		return
	}

	c.handleIngredients(ctx, chatID, identity, conv, msg.Text)
}

// handleIngredients 驗證食材並執行生成流程
func (c *Controller) handleIngredients(ctx context.Context, chatID int64, identity string, conv session.Conversation, text string) {
	meal := conv.Meal
	if meal == "" {
		meal = recipe.Surprise
	}

	products := recipe.Normalize(text)
	if err := recipe.Validate(products, c.maxProducts); err != nil {
		var tooMany *recipe.TooManyIngredientsError
		switch {
		case errors.As(err, &tooMany):
			c.send(ctx, chatID, tooManyIngredientsText(tooMany.Max), nil)
		default:
			c.send(ctx, chatID, noIngredientsText, nil)
		}
		common.LogDebug("Ingredient validation failed",
			zap.String("code", common.ErrCodeValidation),
			zap.String("identity", identity),
			zap.Error(err),
		)
		return
	}

	common.LogInfo("Generating recipes",
		zap.String("identity", identity),
		zap.String("meal", string(meal)),
		zap.Int("ingredients", len(products)),
	)

	prompt := recipe.BuildPrompt(products, meal)
	result, err := c.presenter.Present(ctx, chatID, recipe.Header(meal), recipe.Footer(), prompt, feedbackKeyboard())
	if err != nil {
		common.LogError("Failed to present recipes",
			zap.String("identity", identity),
			zap.Error(err),
		)
	} else if result.OK {
		common.LogInfo("Recipes delivered",
			zap.String("identity", identity),
			zap.String("model", result.ModelUsed),
			zap.Int("attempts", len(result.Trace)),
		)
	}

	c.sessions.Clear(identity)
}

// handleCallback 處理內嵌按鈕
func (c *Controller) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil {
		c.answer(ctx, cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID
	identity := identityOf(chatID, cq.From)
	h := Handle{ChatID: chatID, MessageID: cq.Message.MessageID}

	switch data := cq.Data; {
	case strings.HasPrefix(data, callbackMealPrefix):
		c.answer(ctx, cq.ID, "")
		meal, ok := recipe.ParseMeal(strings.TrimPrefix(data, callbackMealPrefix))
		if !ok {
			common.LogWarn("Unknown meal category", zap.String("data", data))
			return
		}
		c.sessions.Set(identity, session.Conversation{State: session.StateEnteringIngredients, Meal: meal})
		c.clearActions(ctx, h)
		c.send(ctx, chatID, mealChosenText(meal), nil)

	case data == callbackUp || data == callbackDown:
		c.answer(ctx, cq.ID, feedbackAnswer)
		vote, _ := feedback.ParseVote(strings.TrimPrefix(data, "fb:"))
		counts := c.tally.Record(vote)
		common.LogInfo("Feedback received",
			zap.String("vote", string(vote)),
			zap.Int64("up", counts.Up),
			zap.Int64("down", counts.Down),
		)
		c.clearActions(ctx, h)
		c.send(ctx, chatID, feedbackThanks, nil)

	case data == callbackRestart:
		c.answer(ctx, cq.ID, "")
		c.sessions.Set(identity, session.Conversation{State: session.StateChoosingMeal})
		c.clearActions(ctx, h)
		c.send(ctx, chatID, welcomeText, mealKeyboard())

	default:
		c.answer(ctx, cq.ID, "")
		common.LogDebug("Unknown callback", zap.String("data", data))
	}
}

func (c *Controller) send(ctx context.Context, chatID int64, text string, kb Keyboard) {
	if _, err := c.renderer.Send(ctx, chatID, text, kb); err != nil {
		common.LogError("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (c *Controller) answer(ctx context.Context, callbackID, text string) {
	if err := c.renderer.Answer(ctx, callbackID, text); err != nil {
		common.LogDebug("Failed to answer callback", zap.Error(err))
	}
}

func (c *Controller) clearActions(ctx context.Context, h Handle) {
	if err := c.renderer.ClearActions(ctx, h); err != nil {
		common.LogDebug("Failed to clear keyboard", zap.Error(err))
	}
}
