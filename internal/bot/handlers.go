package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/recipes"
	"bodari/internal/session"
	"bodari/internal/tracker"
	"bodari/pkg/apperr"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	StateProfileName         = "profile_name"
	StateProfileDOB          = "profile_dob"
	StateProfileGender       = "profile_gender"
	StateProfileHeight       = "profile_height"
	StateProfileWeight       = "profile_weight"
	StateProfileActivity     = "profile_activity"
	StateProfileGoal         = "profile_goal"
	StateProfileTimeline     = "profile_timeline"
	StateProfileRestrictions = "profile_restrictions"
	StateProfileConfirm      = "profile_confirm"
	StateMealName            = "meal_name"
	StateMealIngredients     = "meal_ingredients"
	StatePantryItems         = "pantry_items"
	StateRecipeTitle         = "recipe_title"
	StateRecipeDiet          = "recipe_diet"
	StateRecipeIngredients   = "recipe_ingredients"
	StateRecipeNutrition     = "recipe_nutrition"
	StateRecipeInstructions  = "recipe_instructions"
)

const (
	historyLimit    = 10
	maxRecipesShown = 10
)

func (t *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()
	chatID := msg.Chat.ID
	t.logger.Infow("Handling command", "command", command, "telegram_id", msg.From.ID)

	switch command {
	case "help":
		t.reply(chatID, helpText)
		return
	case "cancel":
		t.clear(ctx, msg.From.ID)
		t.replyMarkup(chatID, "Okay, cancelled.", tgbotapi.NewRemoveKeyboard(true))
		return
	}

	user, ok := t.user(ctx, msg)
	if !ok {
		return
	}
	// any command abandons a half-finished flow
	t.clear(ctx, msg.From.ID)

	switch command {
	case "start":
		t.startOnboarding(ctx, msg, user)
	case "today":
		summary, err := t.tracker.TodaySummary(ctx, user.ID)
		if err != nil {
			t.replyError(chatID, "today", err)
			return
		}
		t.reply(chatID, formatSummary(summary))
	case "meal":
		t.begin(ctx, msg.From.ID, StateMealName)
		t.replyMarkup(chatID, "What did you eat? Give the meal a name, e.g. Lunch.", tgbotapi.NewRemoveKeyboard(true))
	case "history":
		meals, err := t.tracker.MealHistory(ctx, user.ID, historyLimit)
		if err != nil {
			t.replyError(chatID, "history", err)
			return
		}
		t.reply(chatID, formatHistory(meals))
	case "pantry":
		entries, err := t.tracker.Pantry(ctx, user.ID)
		if err != nil {
			t.replyError(chatID, "pantry", err)
			return
		}
		t.begin(ctx, msg.From.ID, StatePantryItems)
		t.reply(chatID, formatPantry(entries)+"\n\n"+pantryPrompt)
	case "plan", "replan":
		t.typing(chatID)
		res, err := t.tracker.WeeklyPlan(ctx, user.ID, command == "replan")
		if err != nil {
			t.replyError(chatID, command, err)
			return
		}
		t.reply(chatID, fmt.Sprintf("🗓 Meal plan for the week of %s:\n\n%s", res.WeekStart.Format("2 January 2006"), res.Text))
	case "grocery":
		t.typing(chatID)
		items, err := t.tracker.GroceryList(ctx, user.ID)
		if err != nil {
			t.replyError(chatID, "grocery", err)
			return
		}
		t.reply(chatID, formatGrocery(items))
	case "recipes":
		t.listRecipes(ctx, chatID, msg.CommandArguments())
	case "addrecipe":
		t.begin(ctx, msg.From.ID, StateRecipeTitle)
		t.replyMarkup(chatID, "What is the recipe called?", tgbotapi.NewRemoveKeyboard(true))
	default:
		t.reply(chatID, "Unknown command. Use /help to see what I can do.")
	}
}

const pantryPrompt = "Send what you have, one item per line as 'Ingredient: quantity unit', " +
	"for example 'Rice: 1.5 kg'. Units: grams, kg, ml, liters, cups, pieces, units. " +
	"Leave the amount out if you are not sure, e.g. 'Salt'. Use 0 for something you ran out of."

func (t *TelegramBot) startOnboarding(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	chatID := msg.Chat.ID
	profile, err := t.tracker.Profile(ctx, user.ID)
	switch {
	case err == nil:
		t.reply(chatID, fmt.Sprintf("Welcome back, %s!\n\n%s", profile.Name, helpText))
		return
	case !apperr.Is(err, apperr.CodeNotFound):
		t.replyError(chatID, "start", err)
		return
	}

	t.begin(ctx, msg.From.ID, StateProfileName)
	t.replyMarkup(chatID, "👋 Hi! I'll work out your daily targets and plan your meals. First, what should I call you?",
		tgbotapi.NewRemoveKeyboard(true))
}

func (t *TelegramBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	state, err := t.sessions.Get(ctx, msg.From.ID)
	if err != nil {
		t.logger.Errorw("Failed to load conversation state", "telegram_id", msg.From.ID, "error", err)
		t.reply(chatID, userMessage(err))
		return
	}
	if state == nil {
		t.reply(chatID, "Use /help to see what I can do.")
		return
	}

	t.logger.Debugw("Processing message based on state", "telegram_id", msg.From.ID, "state", state.CurrentState)

	switch {
	case strings.HasPrefix(state.CurrentState, "profile_"):
		t.onboardingStep(ctx, msg, state, text)
	case strings.HasPrefix(state.CurrentState, "meal_"):
		t.mealStep(ctx, msg, state, text)
	case state.CurrentState == StatePantryItems:
		t.pantryStep(ctx, msg, text)
	case strings.HasPrefix(state.CurrentState, "recipe_"):
		t.recipeStep(ctx, msg, state, text)
	default:
		t.logger.Warnw("Unknown conversation state, resetting", "telegram_id", msg.From.ID, "state", state.CurrentState)
		t.clear(ctx, msg.From.ID)
		t.reply(chatID, "Sorry, I lost track of our conversation. Please use /help to start again.")
	}
}

func (t *TelegramBot) onboardingStep(ctx context.Context, msg *tgbotapi.Message, state *models.UserState, text string) {
	chatID := msg.Chat.ID
	data := state.TemporaryData

	switch state.CurrentState {
	case StateProfileName:
		if text == "" {
			t.reply(chatID, "Please tell me your name.")
			return
		}
		data["name"] = text
		t.advance(ctx, state, StateProfileDOB)
		t.reply(chatID, "When were you born? Please use YYYY-MM-DD, e.g. 1995-01-31.")

	case StateProfileDOB:
		dob, err := time.Parse(time.DateOnly, text)
		if err != nil || dob.After(t.tracker.Today()) {
			t.reply(chatID, "Please send a past date as YYYY-MM-DD, e.g. 1995-01-31.")
			return
		}
		data["date_of_birth"] = text
		t.advance(ctx, state, StateProfileGender)
		t.replyMarkup(chatID, "What is your gender?", keyboard(genderLabels...))

	case StateProfileGender:
		if _, err := nutrition.ParseGender(text); err != nil {
			t.replyMarkup(chatID, "Please choose one of the buttons.", keyboard(genderLabels...))
			return
		}
		data["gender"] = text
		t.advance(ctx, state, StateProfileHeight)
		t.replyMarkup(chatID, "Your height in centimetres, e.g. 175?", tgbotapi.NewRemoveKeyboard(true))

	case StateProfileHeight:
		if !positiveNumber(text) {
			t.reply(chatID, "Please send your height in centimetres, e.g. 175.")
			return
		}
		data["height_cm"] = strings.ReplaceAll(text, ",", ".")
		t.advance(ctx, state, StateProfileWeight)
		t.reply(chatID, "Your weight in kilograms, e.g. 70?")

	case StateProfileWeight:
		if !positiveNumber(text) {
			t.reply(chatID, "Please send your weight in kilograms, e.g. 70.")
			return
		}
		data["weight_kg"] = strings.ReplaceAll(text, ",", ".")
		t.advance(ctx, state, StateProfileActivity)
		t.replyMarkup(chatID, "How active are you?", keyboard(activityLabels...))

	case StateProfileActivity:
		if _, err := nutrition.ParseActivityLevel(text); err != nil {
			t.replyMarkup(chatID, "Please choose one of the buttons.", keyboard(activityLabels...))
			return
		}
		data["activity_level"] = text
		t.advance(ctx, state, StateProfileGoal)
		t.replyMarkup(chatID, "What is your goal?", keyboard(goalLabels...))

	case StateProfileGoal:
		if _, err := nutrition.ParseGoal(text); err != nil {
			t.replyMarkup(chatID, "Please choose one of the buttons.", keyboard(goalLabels...))
			return
		}
		data["goal"] = text
		t.advance(ctx, state, StateProfileTimeline)
		t.replyMarkup(chatID, "In how many weeks would you like to reach it?", tgbotapi.NewRemoveKeyboard(true))

	case StateProfileTimeline:
		weeks, err := strconv.Atoi(text)
		if err != nil || weeks <= 0 {
			t.reply(chatID, "Please send a whole number of weeks, e.g. 12.")
			return
		}
		data["timeline_weeks"] = text
		t.advance(ctx, state, StateProfileRestrictions)
		t.replyMarkup(chatID, "Any dietary restrictions? Send them comma separated, e.g. Vegetarian, Nut-free.", keyboard(noneLabel))

	case StateProfileRestrictions:
		if strings.EqualFold(text, noneLabel) {
			text = ""
		}
		data["dietary_restrictions"] = text
		t.advance(ctx, state, StateProfileConfirm)
		t.replyMarkup(chatID, profileReview(data), keyboard(confirmYes, confirmNo))

	case StateProfileConfirm:
		switch text {
		case confirmNo:
			state.TemporaryData = map[string]string{}
			t.advance(ctx, state, StateProfileName)
			t.replyMarkup(chatID, "Let's start over. What should I call you?", tgbotapi.NewRemoveKeyboard(true))
			return
		case confirmYes:
		default:
			t.replyMarkup(chatID, "Please choose one of the buttons.", keyboard(confirmYes, confirmNo))
			return
		}

		user, ok := t.user(ctx, msg)
		if !ok {
			return
		}
		in, err := profileInput(data)
		if err == nil {
			_, targets, cerr := t.tracker.CreateProfile(ctx, user.ID, in)
			if cerr == nil {
				t.clear(ctx, msg.From.ID)
				t.replyMarkup(chatID, "✅ Profile saved!\n\n"+formatTargets(targets)+"\n\nUse /meal to log what you eat and /plan for this week's meal plan.",
					tgbotapi.NewRemoveKeyboard(true))
				return
			}
			err = cerr
		}
		t.clear(ctx, msg.From.ID)
		t.replyError(chatID, "create profile", err)
	}
}

func profileReview(data map[string]string) string {
	restrictions := data["dietary_restrictions"]
	if restrictions == "" {
		restrictions = noneLabel
	}
	return fmt.Sprintf("Please check your details:\n\nName: %s\nBorn: %s\nGender: %s\nHeight: %s cm\nWeight: %s kg\nActivity: %s\nGoal: %s in %s weeks\nRestrictions: %s\n\nIs everything correct?",
		data["name"], data["date_of_birth"], data["gender"], data["height_cm"], data["weight_kg"],
		data["activity_level"], data["goal"], data["timeline_weeks"], restrictions)
}

func profileInput(data map[string]string) (tracker.ProfileInput, error) {
	height, err := strconv.ParseFloat(data["height_cm"], 64)
	if err != nil {
		return tracker.ProfileInput{}, apperr.Validation("height is not a number")
	}
	weight, err := strconv.ParseFloat(data["weight_kg"], 64)
	if err != nil {
		return tracker.ProfileInput{}, apperr.Validation("weight is not a number")
	}
	weeks, err := strconv.Atoi(data["timeline_weeks"])
	if err != nil {
		return tracker.ProfileInput{}, apperr.Validation("timeline is not a number")
	}

	var restrictions []string
	for _, r := range strings.Split(data["dietary_restrictions"], ",") {
		if r = strings.TrimSpace(r); r != "" {
			restrictions = append(restrictions, r)
		}
	}
	return tracker.ProfileInput{
		Name:                data["name"],
		DateOfBirth:         data["date_of_birth"],
		Gender:              data["gender"],
		HeightCM:            height,
		WeightKG:            weight,
		ActivityLevel:       data["activity_level"],
		Goal:                data["goal"],
		TimelineWeeks:       weeks,
		DietaryRestrictions: restrictions,
	}, nil
}

func (t *TelegramBot) mealStep(ctx context.Context, msg *tgbotapi.Message, state *models.UserState, text string) {
	chatID := msg.Chat.ID

	switch state.CurrentState {
	case StateMealName:
		if text == "" {
			t.reply(chatID, "Please give the meal a name.")
			return
		}
		state.TemporaryData["name"] = text
		t.advance(ctx, state, StateMealIngredients)
		t.reply(chatID, "List the ingredients, one per line as 'Ingredient: quantity', e.g.\nChicken breast: 150g\nRice: 100g")

	case StateMealIngredients:
		user, ok := t.user(ctx, msg)
		if !ok {
			return
		}
		t.typing(chatID)
		logged, err := t.tracker.LogMeal(ctx, user.ID, tracker.MealInput{
			Name:            state.TemporaryData["name"],
			IngredientsText: text,
		})
		if err != nil {
			if apperr.Is(err, apperr.CodeValidation) {
				// keep the flow open so the user can correct the list
				t.reply(chatID, userMessage(err))
				return
			}
			t.clear(ctx, msg.From.ID)
			t.replyError(chatID, "log meal", err)
			return
		}
		t.clear(ctx, msg.From.ID)

		reply := "✅ Logged " + formatMeal(*logged.Entry)
		if len(logged.Missing) > 0 {
			reply += fmt.Sprintf("\n\nI couldn't read %s from the estimate, so I saved 0 for it.", strings.Join(logged.Missing, ", "))
		}
		t.reply(chatID, reply+"\n\nUse /today to see what's left for today.")
	}
}

func (t *TelegramBot) pantryStep(ctx context.Context, msg *tgbotapi.Message, text string) {
	chatID := msg.Chat.ID

	items, err := parsePantryLines(text)
	if err == nil && len(items) == 0 {
		err = apperr.Validation("send at least one item")
	}
	if err != nil {
		t.reply(chatID, userMessage(err)+"\n\n"+pantryPrompt)
		return
	}

	user, ok := t.user(ctx, msg)
	if !ok {
		return
	}
	entries, err := t.tracker.SavePantry(ctx, user.ID, items)
	if err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			t.reply(chatID, userMessage(err)+"\n\n"+pantryPrompt)
			return
		}
		t.clear(ctx, msg.From.ID)
		t.replyError(chatID, "save pantry", err)
		return
	}
	t.clear(ctx, msg.From.ID)
	t.reply(chatID, fmt.Sprintf("✅ Saved %d pantry item(s). Your next /plan will take them into account.", len(entries)))
}

func (t *TelegramBot) recipeStep(ctx context.Context, msg *tgbotapi.Message, state *models.UserState, text string) {
	chatID := msg.Chat.ID
	data := state.TemporaryData

	switch state.CurrentState {
	case StateRecipeTitle:
		if text == "" {
			t.reply(chatID, "Please send the recipe title.")
			return
		}
		data["title"] = text
		t.advance(ctx, state, StateRecipeDiet)
		t.replyMarkup(chatID, "Which diets does it suit? Comma separated, e.g. Vegan, Gluten-free.", keyboard(recipes.DietOptions...))

	case StateRecipeDiet:
		data["diet"] = text
		t.advance(ctx, state, StateRecipeIngredients)
		t.replyMarkup(chatID, "List the ingredients, one per line as 'Ingredient: quantity'.", tgbotapi.NewRemoveKeyboard(true))

	case StateRecipeIngredients:
		if len(recipes.ParseIngredients(text)) == 0 {
			t.reply(chatID, "Please list at least one ingredient as 'Ingredient: quantity'.")
			return
		}
		data["ingredients"] = text
		t.advance(ctx, state, StateRecipeNutrition)
		t.reply(chatID, "Send calories, protein, fat and carbs per serving as four numbers, e.g. 450 30 12 50.")

	case StateRecipeNutrition:
		if _, err := parseNutrition(text); err != nil {
			t.reply(chatID, "Please send four whole numbers: calories protein fat carbs, e.g. 450 30 12 50.")
			return
		}
		data["nutrition"] = text
		t.advance(ctx, state, StateRecipeInstructions)
		t.reply(chatID, "Finally, the instructions. Send - to skip.")

	case StateRecipeInstructions:
		if text == "-" {
			text = ""
		}
		nums, _ := parseNutrition(data["nutrition"])
		in := recipes.RecipeInput{
			Title:           data["title"],
			Diet:            splitList(data["diet"]),
			IngredientsText: data["ingredients"],
			Calories:        nums[0],
			Protein:         nums[1],
			Fat:             nums[2],
			Carbs:           nums[3],
			Instructions:    text,
		}
		t.clear(ctx, msg.From.ID)
		recipe, err := t.tracker.AddRecipe(ctx, in)
		if err != nil {
			t.replyError(chatID, "add recipe", err)
			return
		}
		t.reply(chatID, "✅ Recipe added.\n\n"+formatRecipe(*recipe))
	}
}

func (t *TelegramBot) listRecipes(ctx context.Context, chatID int64, args string) {
	list, err := t.tracker.Recipes(ctx, recipes.Filter{Diets: splitList(args)})
	if err != nil {
		t.replyError(chatID, "recipes", err)
		return
	}
	if len(list) == 0 {
		t.reply(chatID, "No recipes match. Try /recipes without a diet, or add one with /addrecipe.")
		return
	}

	shown := list
	if len(shown) > maxRecipesShown {
		shown = shown[:maxRecipesShown]
	}
	parts := make([]string, 0, len(shown)+1)
	for _, r := range shown {
		parts = append(parts, formatRecipe(r))
	}
	if len(list) > len(shown) {
		parts = append(parts, fmt.Sprintf("…and %d more. Narrow it down with /recipes <diet>.", len(list)-len(shown)))
	}
	t.reply(chatID, strings.Join(parts, "\n\n"))
}

func parseNutrition(text string) ([4]int, error) {
	var out [4]int
	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
	if len(fields) != 4 {
		return out, fmt.Errorf("want 4 numbers, got %d", len(fields))
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return out, fmt.Errorf("%q is not a non-negative whole number", f)
		}
		out[i] = n
	}
	return out, nil
}

func splitList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveNumber(text string) bool {
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	return err == nil && v > 0
}

// user registers the sender on first contact and refreshes chat details.
func (t *TelegramBot) user(ctx context.Context, msg *tgbotapi.Message) (*models.User, bool) {
	user, err := t.tracker.EnsureUser(ctx, msg.From.ID, msg.Chat.ID, msg.From.UserName)
	if err != nil {
		t.replyError(msg.Chat.ID, "ensure user", err)
		return nil, false
	}
	return user, true
}

func (t *TelegramBot) begin(ctx context.Context, telegramID int64, step string) {
	t.save(ctx, session.New(telegramID, step))
}

func (t *TelegramBot) advance(ctx context.Context, state *models.UserState, step string) {
	state.CurrentState = step
	t.save(ctx, state)
}

func (t *TelegramBot) save(ctx context.Context, state *models.UserState) {
	if err := t.sessions.Save(ctx, state); err != nil {
		t.logger.Errorw("Failed to save conversation state", "telegram_id", state.TelegramID, "state", state.CurrentState, "error", err)
	}
}

func (t *TelegramBot) clear(ctx context.Context, telegramID int64) {
	if err := t.sessions.Delete(ctx, telegramID); err != nil {
		t.logger.Errorw("Failed to clear conversation state", "telegram_id", telegramID, "error", err)
	}
}

func (t *TelegramBot) reply(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLen) {
		if _, err := t.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			t.logger.Errorw("Failed to send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (t *TelegramBot) replyMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Errorw("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// replyError logs anything the user did not cause and answers in plain words.
func (t *TelegramBot) replyError(chatID int64, op string, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation, apperr.CodeNotFound, apperr.CodeDuplicateKey:
		t.logger.Debugw("Request rejected", "op", op, "chat_id", chatID, "error", err)
	default:
		t.logger.Errorw("Request failed", "op", op, "chat_id", chatID, "error", err)
	}
	t.replyMarkup(chatID, userMessage(err), tgbotapi.NewRemoveKeyboard(true))
}

func (t *TelegramBot) typing(chatID int64) {
	if _, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		t.logger.Debugw("Failed to send typing action", "chat_id", chatID, "error", err)
	}
}
