// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/abelzeko/flood-watch/internal/prediction"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/abelzeko/flood-watch/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// maxPhotoBytes matches the Telegram Bot API download limit.
const maxPhotoBytes = 20 << 20

const reportUsage = "/report address; height; name[; phone]\n" +
	"height is one of: ankle, calf, knee, above-knee\n" +
	"Example: /report Jl. Slamet Riyadi 12, Solo; knee; Sari; 08123456789\n" +
	"Send it as the caption of a photo to attach the photo."

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/report address; height; name[; phone] - Report a flood (add a photo by using this as a photo caption)\n" +
	"/today - Today's flood reports\n" +
	"/month - This month's flood reports\n" +
	"/all - All flood reports\n" +
	"/stats - Monthly and yearly statistics\n" +
	"/risk rainfall level humidity tmin [tmax] - Estimate flood risk (mm, mdpl, %, °C)\n" +
	"/gumbel rainfall [return_period] - Gumbel extreme rainfall risk\n" +
	"/live - Latest river station readings\n" +
	"/export [today|month|all] - Download reports as a spreadsheet\n" +
	"/model - Technical details of the risk models\n" +
	"/help - Show this help message"

// reply is what the bot sends back for one message
type reply struct {
	text     string
	document *tgbotapi.FileBytes
}

// fileFetcher downloads a Telegram file by id
type fileFetcher func(ctx context.Context, fileID string) ([]byte, error)

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot        *tgbotapi.BotAPI
	reports    *usecases.ReportUseCase
	risk       *usecases.RiskUseCase
	assistant  *usecases.AssistantUseCase
	fetchFile  fileFetcher
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewTelegramBot creates a new Telegram bot handler. assistant may be nil.
func NewTelegramBot(
	botToken string,
	reports *usecases.ReportUseCase,
	risk *usecases.RiskUseCase,
	assistant *usecases.AssistantUseCase,
	logger logrus.FieldLogger,
) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	t := &TelegramBot{
		bot:        bot,
		reports:    reports,
		risk:       risk,
		assistant:  assistant,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	t.fetchFile = t.downloadFile
	return t, nil
}

// Start listens for and handles Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.WithField("account", t.bot.Self.UserName).Info("Authorized on Telegram account")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("Bot is now listening for messages")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("Bot stopped receiving updates")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes a Telegram message and sends the reply
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	log := t.logger.WithFields(logrus.Fields{
		"submitter": submitterID(message.From),
		"chat_id":   message.Chat.ID,
	})
	log.WithField("text", message.Text).Info("Received message")

	r := t.respond(ctx, message)

	var out tgbotapi.Chattable
	if r.document != nil {
		doc := tgbotapi.NewDocument(message.Chat.ID, *r.document)
		doc.Caption = r.text
		out = doc
	} else {
		out = tgbotapi.NewMessage(message.Chat.ID, r.text)
	}

	if _, err := t.bot.Send(out); err != nil {
		log.WithError(err).Error("Error sending message")
	}
}

func (t *TelegramBot) respond(ctx context.Context, message *tgbotapi.Message) reply {
	switch {
	case message.IsCommand():
		return t.handleCommand(ctx, message.Command(), message.CommandArguments(), message)
	case len(message.Photo) > 0 || message.Document != nil:
		if cmd, args := captionCommand(message.Caption); cmd == "report" {
			return t.handleReport(ctx, args, message)
		}
		return reply{text: "To report a flood with a photo, send the photo with this caption:\n" + reportUsage}
	default:
		return t.handleNonCommand(ctx, message)
	}
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, command, args string, message *tgbotapi.Message) reply {
	log := t.logger.WithFields(logrus.Fields{"command": command, "submitter": submitterID(message.From)})
	log.Debug("Handling command")

	switch command {
	case "start":
		return reply{text: "Welcome to Flood Watch! Report floods around you with /report and check the flood risk with /risk or /live. Use /help for all commands."}

	case "help":
		return reply{text: helpText}

	case "report":
		return t.handleReport(ctx, args, message)

	case "today":
		return t.listReports(ctx, "Today's flood reports", t.reports.GetTodayReports)

	case "month":
		return t.listReports(ctx, "This month's flood reports", t.reports.GetMonthReports)

	case "all":
		return t.listReports(ctx, "All flood reports", t.reports.GetAllReports)

	case "stats":
		monthly := usecases.FormatMonthlyStatistics(t.reports.GetMonthlyStatistics(ctx))
		yearly := usecases.FormatYearlyStatistics(t.reports.GetYearlyStatistics(ctx))
		return reply{text: monthly + "\n\n" + yearly}

	case "risk":
		return t.handleRisk(args)

	case "gumbel":
		return t.handleGumbel(args)

	case "live":
		predictions, fallback := t.risk.GetLatestPredictions(ctx)
		overall := usecases.OverallRiskStatus(predictions)
		return reply{text: usecases.FormatPredictions(predictions, overall, fallback)}

	case "export":
		return t.handleExport(ctx, args)

	case "model":
		return reply{text: usecases.FormatModelParameters(prediction.ANNParameters()) + "\n\n" +
			usecases.FormatModelParameters(prediction.GumbelParameters())}

	default:
		log.Info("Received unknown command")
		return reply{text: "Unknown command. Use /help to see available commands."}
	}
}

func (t *TelegramBot) listReports(ctx context.Context, title string, load func(context.Context) ([]entities.FloodReport, error)) reply {
	reports, err := load(ctx)
	if err != nil {
		t.logger.WithError(err).Error("Error fetching reports")
		return reply{text: "Error fetching reports. Please try again later."}
	}
	return reply{text: usecases.FormatReports(title, reports)}
}

// handleReport processes /report, with an optional photo or image document
func (t *TelegramBot) handleReport(ctx context.Context, args string, message *tgbotapi.Message) reply {
	req, err := parseReportArgs(args)
	if err != nil {
		return reply{text: err.Error() + "\n\n" + reportUsage}
	}
	req.SubmitterID = submitterID(message.From)

	photo, err := t.photoFromMessage(ctx, message)
	if err != nil {
		t.logger.WithError(err).WithField("submitter", req.SubmitterID).Error("Failed to download photo")
		return reply{text: "Could not download your photo. Please try again."}
	}
	req.Photo = photo

	res := t.reports.SubmitReport(ctx, req)
	if !res.Success {
		return reply{text: res.Message}
	}
	return reply{text: fmt.Sprintf("%s\nReport #%d", res.Message, res.ReportID)}
}

func (t *TelegramBot) photoFromMessage(ctx context.Context, message *tgbotapi.Message) (*usecases.PhotoUpload, error) {
	switch {
	case len(message.Photo) > 0:
		// Sizes are ordered smallest first.
		largest := message.Photo[len(message.Photo)-1]
		data, err := t.fetchFile(ctx, largest.FileID)
		if err != nil {
			return nil, err
		}
		return &usecases.PhotoUpload{Filename: "photo.jpg", Data: data}, nil

	case message.Document != nil:
		upload := &usecases.PhotoUpload{Filename: message.Document.FileName}
		if !repository.IsAllowedPhoto(upload.Filename) {
			// Rejected by the submission without reading the bytes.
			return upload, nil
		}
		data, err := t.fetchFile(ctx, message.Document.FileID)
		if err != nil {
			return nil, err
		}
		upload.Data = data
		return upload, nil

	default:
		return nil, nil
	}
}

func (t *TelegramBot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	res, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code downloading file: %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, maxPhotoBytes))
}

// handleRisk processes /risk rainfall level humidity tmin [tmax]
func (t *TelegramBot) handleRisk(args string) reply {
	values, err := parseNumbers(args, 4, 5)
	if err != nil {
		return reply{text: err.Error() + "\nUsage: /risk rainfall level humidity tmin [tmax]\nExample: /risk 150 125 85 24 31"}
	}

	var a prediction.Assessment
	if len(values) == 5 {
		a = t.risk.PredictManualRange(values[0], values[1], values[2], values[3], values[4])
	} else {
		a = t.risk.PredictManual(values[0], values[1], values[2], values[3])
	}
	return reply{text: usecases.FormatAssessment(a)}
}

// handleGumbel processes /gumbel rainfall [return_period]
func (t *TelegramBot) handleGumbel(args string) reply {
	rainfall, period, err := parseGumbelArgs(args)
	if err != nil {
		return reply{text: err.Error() + "\nUsage: /gumbel rainfall [return_period]\nExample: /gumbel 120 25"}
	}
	return reply{text: usecases.FormatAssessment(t.risk.PredictGumbel(rainfall, period))}
}

// handleExport processes /export [today|month|all]
func (t *TelegramBot) handleExport(ctx context.Context, args string) reply {
	scope, err := usecases.ParseExportScope(strings.ToLower(strings.TrimSpace(args)))
	if err != nil {
		return reply{text: err.Error()}
	}

	data, err := t.reports.ExportReports(ctx, scope)
	if err != nil {
		t.logger.WithError(err).Error("Failed to export reports")
		return reply{text: "Failed to export reports. Please try again later."}
	}
	return reply{
		text:     fmt.Sprintf("Flood reports (%s)", scope),
		document: &tgbotapi.FileBytes{Name: t.reports.ExportFilename(scope), Bytes: data},
	}
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message) reply {
	if t.assistant == nil || strings.TrimSpace(message.Text) == "" {
		return reply{text: "I don't understand. Use /help to see available commands."}
	}

	text, err := t.assistant.HandleNaturalLanguageQuery(ctx, message.Text)
	if err != nil {
		t.logger.WithError(err).Error("Assistant failed")
		return reply{text: "I don't understand. Use /help to see available commands."}
	}
	return reply{text: text}
}

// submitterID is the quota identity of a Telegram user
func submitterID(user *tgbotapi.User) string {
	if user == nil {
		return "unknown"
	}
	return fmt.Sprintf("tg:%d", user.ID)
}

// captionCommand extracts a leading /command from a media caption, which
// Telegram does not mark as a command.
func captionCommand(caption string) (string, string) {
	caption = strings.TrimSpace(caption)
	if !strings.HasPrefix(caption, "/") {
		return "", ""
	}
	cmd, args, _ := strings.Cut(caption[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// parseReportArgs splits "address; height; name[; phone]"
func parseReportArgs(args string) (usecases.SubmitRequest, error) {
	if strings.TrimSpace(args) == "" {
		return usecases.SubmitRequest{}, errors.New("Please describe the flood.")
	}

	parts := strings.Split(args, ";")
	if len(parts) < 3 || len(parts) > 4 {
		return usecases.SubmitRequest{}, errors.New("Please separate address, height, name and optional phone with ';'.")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	req := usecases.SubmitRequest{
		Address:      parts[0],
		FloodHeight:  entities.ParseFloodHeight(parts[1]),
		ReporterName: parts[2],
	}
	if len(parts) == 4 {
		req.ReporterPhone = parts[3]
	}
	return req, nil
}

// parseNumbers reads between lo and hi whitespace separated numbers.
// A decimal comma is accepted.
func parseNumbers(args string, lo, hi int) ([]float64, error) {
	fields := strings.Fields(args)
	if len(fields) < lo || len(fields) > hi {
		return nil, fmt.Errorf("Expected %d to %d numbers, got %d.", lo, hi, len(fields))
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.ReplaceAll(f, ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number.", f)
		}
		values[i] = v
	}
	return values, nil
}

// parseGumbelArgs reads "rainfall [return_period]"
func parseGumbelArgs(args string) (float64, int, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, 0, errors.New("Expected rainfall and an optional return period.")
	}

	values, err := parseNumbers(fields[0], 1, 1)
	if err != nil {
		return 0, 0, err
	}

	period := prediction.DefaultReturnPeriod
	if len(fields) == 2 {
		period, err = strconv.Atoi(fields[1])
		if err != nil || period <= 0 {
			return 0, 0, fmt.Errorf("%q is not a valid return period in years.", fields[1])
		}
	}
	return values[0], period, nil
}
