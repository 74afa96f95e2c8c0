package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bodari/config"
	"bodari/internal/grocery"
	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/pantry"
	"bodari/internal/planner"
	"bodari/internal/recipes"
	"bodari/internal/session"
	"bodari/internal/tracker"
	"bodari/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Tracker is what the chat presenter needs from the application service.
type Tracker interface {
	Today() time.Time
	EnsureUser(ctx context.Context, telegramID, chatID int64, username string) (*models.User, error)
	CreateProfile(ctx context.Context, userID int64, in tracker.ProfileInput) (*models.UserProfile, nutrition.Targets, error)
	Profile(ctx context.Context, userID int64) (*models.UserProfile, error)
	TodaySummary(ctx context.Context, userID int64) (*tracker.DailySummary, error)
	LogMeal(ctx context.Context, userID int64, in tracker.MealInput) (*tracker.LoggedMeal, error)
	MealHistory(ctx context.Context, userID int64, limit int) ([]models.MealLogEntry, error)
	SavePantry(ctx context.Context, userID int64, items []pantry.Item) ([]models.PantryEntry, error)
	Pantry(ctx context.Context, userID int64) ([]models.PantryEntry, error)
	WeeklyPlan(ctx context.Context, userID int64, force bool) (*planner.Result, error)
	GroceryList(ctx context.Context, userID int64) ([]grocery.Item, error)
	Recipes(ctx context.Context, f recipes.Filter) ([]models.Recipe, error)
	AddRecipe(ctx context.Context, in recipes.RecipeInput) (*models.Recipe, error)
}

// sender is the part of *tgbotapi.BotAPI used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramBot struct {
	api      sender
	poller   poller
	tracker  Tracker
	sessions session.Store
	logger   *logger.Logger

	// per-update work must finish before the context it derives from is gone
	inflight sync.WaitGroup
	// handlerTimeout bounds one update, generation included
	handlerTimeout time.Duration
}

func NewTelegramBot(cfg config.TelegramConfig, tr Tracker, sessions session.Store, log *logger.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	api.Debug = cfg.Debug

	log.Infow("Authorized on Telegram", "username", api.Self.UserName)

	b := newTelegramBot(api, tr, sessions, log)
	b.poller = api
	return b, nil
}

func newTelegramBot(api sender, tr Tracker, sessions session.Store, log *logger.Logger) *TelegramBot {
	return &TelegramBot{
		api:            api,
		tracker:        tr,
		sessions:       sessions,
		logger:         log,
		handlerTimeout: 3 * time.Minute,
	}
}

// Start begins receiving updates from Telegram via polling.
func (t *TelegramBot) Start(ctx context.Context) error {
	t.logger.Info("Removing any existing webhook")
	if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := t.poller.GetUpdatesChan(updateConfig)

	t.logger.Info("Started receiving Telegram updates")
	go t.handleUpdates(ctx, updates)
	return nil
}

func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		t.inflight.Add(1)
		go func(update tgbotapi.Update) {
			defer t.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					t.logger.Errorw("Recovered from panic while processing update", "update_id", update.UpdateID, "panic", r)
				}
			}()

			uctx, cancel := context.WithTimeout(ctx, t.handlerTimeout)
			defer cancel()
			t.handleUpdate(uctx, update)
		}(update)
	}
}

func (t *TelegramBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		t.logger.Debugw("Received message",
			"update_id", update.UpdateID,
			"chat_id", msg.Chat.ID,
			"from", msg.From.UserName,
		)
		if msg.IsCommand() {
			t.handleCommand(ctx, msg)
		} else {
			t.handleMessage(ctx, msg)
		}
	case update.CallbackQuery != nil:
		// inline keyboards are not used; acknowledge so the client stops spinning
		if _, err := t.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			t.logger.Warnw("Failed to answer callback", "error", err)
		}
	}
}

// Stop stops polling and waits for in-flight updates until ctx expires.
func (t *TelegramBot) Stop(ctx context.Context) error {
	if t.poller != nil {
		t.poller.StopReceivingUpdates()
	}

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
