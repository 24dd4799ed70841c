package main

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const (
	actionOpenAnswers      = "classify_answers_open"
	modalAnswersCallbackID = "classify_answers_modal"
	answersMetaPrefix      = "answers:"
	answerBlockPrefix      = "answer_"
	answerActionInput      = "answer_input"
)

// One controller per Slack user; a fresh text from the same user
// replaces that user's session wholesale.
var controllers sync.Map // userID -> *Controller

func controllerFor(client *ClassifierClient, userID string) *Controller {
	if v, ok := controllers.Load(userID); ok {
		return v.(*Controller)
	}
	v, _ := controllers.LoadOrStore(userID, NewController(client))
	return v.(*Controller)
}

func StartSlackBot(cfg Config, db *sql.DB, api *slack.Client, classifier *ClassifierClient) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go handleSlashCommand(api, db, cfg, classifier, cmd)
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go handleEventsAPI(api, cfg, classifier, eventsAPIEvent)
			case socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
				callback, ok := evt.Data.(slack.InteractionCallback)
				if !ok {
					continue
				}
				go handleInteraction(api, cfg, classifier, callback)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func handleSlashCommand(api *slack.Client, db *sql.DB, cfg Config, classifier *ClassifierClient, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/classify":
		handleClassify(api, classifier, cmd)
	case "/analyze-legacy":
		handleAnalyzeLegacy(api, classifier, cmd)
	case "/work-types":
		handleWorkTypes(api, db, classifier, cmd)
	case "/agents":
		handleAgents(api, db, classifier, cmd)
	case "/classifier-status":
		handleClassifierStatus(api, db, cfg, classifier, cmd)
	case "/classifier-refresh":
		handleCatalogRefresh(api, db, classifier, cmd)
	case "/help":
		handleHelp(api, cmd)
	}
}

func handleEventsAPI(api *slack.Client, cfg Config, classifier *ClassifierClient, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Only plain user DMs; edits, bot echoes and thread noise are skipped.
		if ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" {
			return
		}
		runClassification(api, classifier, ev.Channel, ev.User, ev.Text)
	}
}

func handleInteraction(api *slack.Client, cfg Config, classifier *ClassifierClient, cb slack.InteractionCallback) {
	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		for _, action := range cb.ActionCallback.BlockActions {
			if action.ActionID == actionOpenAnswers {
				openAnswersModal(api, classifier, cb, action.Value)
				return
			}
		}
	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID == modalAnswersCallbackID {
			handleAnswersSubmission(api, classifier, cb)
		}
	}
}

func handleClassify(api *slack.Client, classifier *ClassifierClient, cmd slack.SlashCommand) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		postEphemeral(api, cmd, "Использование: /classify <текст заявки>\nПример: /classify Не работает принтер в аудитории 301")
		return
	}
	runClassification(api, classifier, cmd.ChannelID, cmd.UserID, text)
}

// runClassification starts a fresh flow for the user's text and renders
// the first-round result.
func runClassification(api *slack.Client, classifier *ClassifierClient, channelID, userID, text string) {
	ctrl := controllerFor(classifier, userID)
	session, err := ctrl.StartClassification(text)
	if err != nil {
		reportFlowError(api, channelID, userID, err, "Ошибка при анализе заявки. Попробуйте еще раз.")
		return
	}
	renderSession(api, ctrl, channelID, userID, session)
}

func reportFlowError(api *slack.Client, channelID, userID string, err error, transportMsg string) {
	switch {
	case IsStaleResponse(err):
		// The session this response belonged to is gone. Nothing to show.
		log.Printf("stale response dropped user=%s", userID)
	case err == ErrEmptyText:
		postEphemeralTo(api, channelID, userID, "Текст заявки пуст. Опишите проблему и отправьте снова.")
	case err == ErrRequestInFlight:
		postEphemeralTo(api, channelID, userID, "Предыдущий запрос еще выполняется, подождите.")
	case err == ErrSessionReplaced:
		postEphemeralTo(api, channelID, userID, "Эта сессия уже заменена новой заявкой. Ответы не отправлены.")
	case err == ErrNoOpenQuestions:
		postEphemeralTo(api, channelID, userID, "Сейчас нет открытых уточняющих вопросов.")
	case err == ErrIncompleteAnswers:
		postEphemeralTo(api, channelID, userID, "Заполните ответы на все вопросы перед отправкой.")
	default:
		log.Printf("classification error user=%s: %v", userID, err)
		postEphemeralTo(api, channelID, userID, transportMsg)
	}
}

func renderSession(api *slack.Client, ctrl *Controller, channelID, userID string, session Session) {
	outcome := InterpretSession(session)
	switch outcome.Mode {
	case ModeNeedsClarification:
		postClarification(api, ctrl, channelID, userID, outcome)
	case ModeClassified:
		postClassified(api, channelID, outcome)
	case ModeUnclassified:
		postUnclassified(api, channelID, outcome)
	}
}

func postClarification(api *slack.Client, ctrl *Controller, channelID, userID string, outcome Outcome) {
	var sb strings.Builder
	sb.WriteString("*Требуется дополнительная информация*\n")
	sb.WriteString("Ответьте на вопросы для точной классификации заявки:\n")
	for i, q := range outcome.Questions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false), nil, nil),
	}

	if outcome.Provisional {
		hint := fmt.Sprintf("Предварительная классификация: *%s*", outcome.Class)
		if outcome.Confidence != nil {
			hint += fmt.Sprintf(" — уверенность %.0f%% (требуется уточнение)", *outcome.Confidence*100)
		}
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, hint, false, false)))
	}

	button := slack.NewButtonBlockElement(actionOpenAnswers, userID,
		slack.NewTextBlockObject(slack.PlainTextType, "Ответить на вопросы", false, false))
	button.Style = slack.StylePrimary
	blocks = append(blocks, slack.NewActionBlock("clarify_actions", button))

	if outcome.Reasoning != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, outcome.Reasoning, false, false)))
	}

	_, _, err := api.PostMessage(channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText("Требуется дополнительная информация", false),
	)
	if err != nil {
		log.Printf("Error posting clarification user=%s: %v", userID, err)
	}
}

func postClassified(api *slack.Client, channelID string, outcome Outcome) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Классификация:* %s\n", outcome.Class))
	if outcome.Confidence != nil {
		band := BandOf(outcome.Confidence)
		sb.WriteString(fmt.Sprintf("*Уверенность:* %s %.0f%%\n", band.Marker(), *outcome.Confidence*100))
	}
	sb.WriteString(fmt.Sprintf("*Стадия:* %s", StageLabel(outcome.Stage)))

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false), nil, nil),
	}
	if outcome.Reasoning != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, outcome.Reasoning, false, false)))
	}

	_, _, err := api.PostMessage(channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fmt.Sprintf("Классификация: %s", outcome.Class), false),
	)
	if err != nil {
		log.Printf("Error posting classified result: %v", err)
	}
}

func postUnclassified(api *slack.Client, channelID string, outcome Outcome) {
	text := "*Не удалось классифицировать заявку.*\nОбратитесь в службу поддержки напрямую."
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
	if outcome.Reasoning != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, outcome.Reasoning, false, false)))
	}

	_, _, err := api.PostMessage(channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText("Не удалось классифицировать заявку", false),
	)
	if err != nil {
		log.Printf("Error posting unclassified result: %v", err)
	}
}

// openAnswersModal shows one required input per outstanding question.
// The session generation rides along in private_metadata so a submission
// from a modal that outlived its session is recognized and dropped.
func openAnswersModal(api *slack.Client, classifier *ClassifierClient, cb slack.InteractionCallback, ownerID string) {
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	userID := cb.User.ID

	if ownerID != "" && ownerID != userID {
		postEphemeralTo(api, channelID, userID, "Отвечать на вопросы может только автор заявки.")
		return
	}

	ctrl := controllerFor(classifier, userID)
	session := ctrl.Session()
	if !session.AwaitingAnswers() {
		postEphemeralTo(api, channelID, userID, "Эта сессия уже завершена или заменена новой заявкой.")
		return
	}

	blocks := make([]slack.Block, 0, len(session.Questions))
	for i, q := range session.Questions {
		input := slack.NewPlainTextInputBlockElement(
			slack.NewTextBlockObject(slack.PlainTextType, "Введите ваш ответ...", false, false),
			answerActionInput,
		)
		blocks = append(blocks, slack.NewInputBlock(
			fmt.Sprintf("%s%d", answerBlockPrefix, i),
			slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("%d. %s", i+1, q), false, false),
			nil,
			input,
		))
	}

	view := slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Уточняющие вопросы", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Отмена", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Отправить ответы", false, false),
		CallbackID:      modalAnswersCallbackID,
		PrivateMetadata: fmt.Sprintf("%s%s|%s|%d", answersMetaPrefix, userID, channelID, ctrl.Generation()),
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
	if _, err := api.OpenView(cb.TriggerID, view); err != nil {
		log.Printf("Error opening answers modal user=%s: %v", userID, err)
		postEphemeralTo(api, channelID, userID, "Не удалось открыть форму ответов.")
	}
}

func handleAnswersSubmission(api *slack.Client, classifier *ClassifierClient, cb slack.InteractionCallback) {
	meta := strings.TrimSpace(cb.View.PrivateMetadata)
	if !strings.HasPrefix(meta, answersMetaPrefix) {
		return
	}
	parts := strings.Split(strings.TrimPrefix(meta, answersMetaPrefix), "|")
	if len(parts) != 3 {
		return
	}
	userID, channelID := parts[0], parts[1]
	gen, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return
	}
	if cb.User.ID != userID {
		return
	}

	if cb.View.State == nil {
		return
	}
	values := cb.View.State.Values
	var answers []string
	for i := 0; ; i++ {
		actions, ok := values[fmt.Sprintf("%s%d", answerBlockPrefix, i)]
		if !ok {
			break
		}
		answers = append(answers, actions[answerActionInput].Value)
	}

	// The controller re-checks gen under its own lock, so a modal that
	// outlived its session can never write into a newer round.
	ctrl := controllerFor(classifier, userID)
	session, err := ctrl.SubmitAnswersFor(gen, answers)
	if err != nil {
		reportFlowError(api, channelID, userID, err, "Ошибка при обработке ответов. Попробуйте еще раз.")
		return
	}
	renderSession(api, ctrl, channelID, userID, session)
}

func handleAnalyzeLegacy(api *slack.Client, classifier *ClassifierClient, cmd slack.SlashCommand) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		postEphemeral(api, cmd, "Использование: /analyze-legacy <текст заявки>")
		return
	}

	result, err := classifier.AnalyzeText(text)
	if err != nil {
		log.Printf("legacy analyze error user=%s: %v", cmd.UserID, err)
		postEphemeral(api, cmd, "Ошибка при анализе заявки. Попробуйте еще раз.")
		return
	}

	outcome := InterpretLegacyResult(*result)
	switch outcome.Mode {
	case ModeClassified:
		postClassified(api, cmd.ChannelID, outcome)
	default:
		postUnclassified(api, cmd.ChannelID, outcome)
	}
	if result.ProcessingTimeMs > 0 {
		postEphemeral(api, cmd, fmt.Sprintf("Обработано за %.0f мс (legacy pipeline).", result.ProcessingTimeMs))
	}
}

func handleWorkTypes(api *slack.Client, db *sql.DB, classifier *ClassifierClient, cmd slack.SlashCommand) {
	types, err := LoadWorkTypes(db)
	if err != nil {
		log.Printf("work-types load error: %v", err)
		postEphemeral(api, cmd, "Ошибка чтения каталога типов работ.")
		return
	}
	if len(types) == 0 {
		// Cold cache: pull once on demand.
		if _, refreshErr := RefreshCatalog(classifier, db); refreshErr != nil {
			postEphemeral(api, cmd, "Каталог типов работ пока недоступен.")
			return
		}
		types, err = LoadWorkTypes(db)
		if err != nil || len(types) == 0 {
			postEphemeral(api, cmd, "Каталог типов работ пока недоступен.")
			return
		}
	}

	postEphemeral(api, cmd, FormatWorkTypeCatalog(types))
}

// FormatWorkTypeCatalog renders the catalog grouped by category,
// preserving the category-then-name order LoadWorkTypes returns.
func FormatWorkTypeCatalog(types []WorkType) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Каталог типов работ* (%d):\n", len(types)))
	currentCategory := ""
	for _, wt := range types {
		if wt.Category != currentCategory {
			currentCategory = wt.Category
			sb.WriteString(fmt.Sprintf("\n*%s*\n", currentCategory))
		}
		sb.WriteString(fmt.Sprintf("• %s", wt.Name))
		if wt.Description != "" {
			sb.WriteString(fmt.Sprintf(" — %s", wt.Description))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func handleAgents(api *slack.Client, db *sql.DB, classifier *ClassifierClient, cmd slack.SlashCommand) {
	agents, err := LoadAgents(db)
	if err != nil {
		log.Printf("agents load error: %v", err)
		postEphemeral(api, cmd, "Ошибка чтения списка агентов.")
		return
	}
	if len(agents) == 0 {
		if _, refreshErr := RefreshCatalog(classifier, db); refreshErr != nil {
			postEphemeral(api, cmd, "Список агентов пока недоступен.")
			return
		}
		agents, err = LoadAgents(db)
		if err != nil || len(agents) == 0 {
			postEphemeral(api, cmd, "Список агентов пока недоступен.")
			return
		}
	}

	var sb strings.Builder
	sb.WriteString("*Агенты пайплайна классификации:*\n")
	for _, a := range agents {
		sb.WriteString(fmt.Sprintf("• *%s*", a.Name))
		if a.Description != "" {
			sb.WriteString(fmt.Sprintf(" — %s", a.Description))
		}
		sb.WriteString("\n")
	}
	postEphemeral(api, cmd, sb.String())
}

func handleClassifierStatus(api *slack.Client, db *sql.DB, cfg Config, classifier *ClassifierClient, cmd slack.SlashCommand) {
	var sb strings.Builder

	status, err := classifier.Health()
	if err != nil {
		sb.WriteString(fmt.Sprintf("Бэкенд недоступен: %v\n", err))
	} else {
		sb.WriteString(fmt.Sprintf("Бэкенд: %s (%s), типов работ: %d\n", status.Status, status.Service, status.WorkTypesCount))
	}

	if at, ok := CatalogRefreshedAt(db); ok {
		sb.WriteString(fmt.Sprintf("Кэш каталога обновлен: %s", at.In(cfg.Location).Format("2006-01-02 15:04")))
	} else {
		sb.WriteString("Кэш каталога еще не заполнялся.")
	}

	postEphemeral(api, cmd, sb.String())
}

func handleCatalogRefresh(api *slack.Client, db *sql.DB, classifier *ClassifierClient, cmd slack.SlashCommand) {
	start := time.Now()
	result, err := RefreshCatalog(classifier, db)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Обновление каталога не удалось: %v", err))
		return
	}
	postEphemeral(api, cmd, fmt.Sprintf("Каталог обновлен за %s: %s",
		time.Since(start).Round(time.Millisecond), FormatRefreshSummary(result)))
}

func handleHelp(api *slack.Client, cmd slack.SlashCommand) {
	help := "*Классификация IT-заявок*\n" +
		"Отправьте текст заявки в личные сообщения боту или используйте команды:\n" +
		"• `/classify <текст>` — классифицировать заявку\n" +
		"• `/analyze-legacy <текст>` — одношаговый анализ (старый пайплайн)\n" +
		"• `/work-types` — каталог типов работ\n" +
		"• `/agents` — агенты пайплайна\n" +
		"• `/classifier-status` — состояние бэкенда и кэша\n" +
		"• `/classifier-refresh` — обновить кэш каталога\n" +
		"Если бот задал уточняющие вопросы, нажмите «Ответить на вопросы» и заполните все поля."
	postEphemeral(api, cmd, help)
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	postEphemeralTo(api, cmd.ChannelID, cmd.UserID, text)
}

func postEphemeralTo(api *slack.Client, channelID, userID, text string) {
	_, err := api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}
