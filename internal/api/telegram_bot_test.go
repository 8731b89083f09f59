package api

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/abelzeko/flood-watch/internal/integration/openai"
	"github.com/abelzeko/flood-watch/internal/observability"
	"github.com/abelzeko/flood-watch/internal/prediction"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/abelzeko/flood-watch/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyFeed struct{}

func (emptyFeed) FetchReadings(context.Context) ([]entities.StationReading, bool) {
	return nil, true
}

type fakeAgent struct {
	resp *openai.AgentResponse
}

func (f *fakeAgent) InterpretUserQuery(context.Context, string) (*openai.AgentResponse, error) {
	return f.resp, nil
}

type fakeFiles struct {
	requested []string
	err       error
}

func (f *fakeFiles) fetch(_ context.Context, fileID string) ([]byte, error) {
	f.requested = append(f.requested, fileID)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("jpeg bytes"), nil
}

func newTestBot(t *testing.T, agent openai.OpenAIService) (*TelegramBot, *fakeFiles) {
	t.Helper()
	logger, _ := test.NewNullLogger()

	db, err := repository.OpenDatabase(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reportRepo, err := repository.NewSQLiteReportRepository(db, logger)
	require.NoError(t, err)
	stationRepo, err := repository.NewSQLiteStationRepository(db, logger)
	require.NoError(t, err)
	photos, err := repository.NewFilePhotoRepository(filepath.Join(t.TempDir(), "uploads"), logger)
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 9, 30, 0, 0, entities.Location))
	metrics := observability.NewMetricsForTesting()

	reports := usecases.NewReportUseCase(reportRepo, photos, nil, usecases.DefaultMirrorTimeout, clock, metrics, logger)
	risk := usecases.NewRiskUseCase(stationRepo, emptyFeed{}, 75, 27, clock, metrics, logger)

	var assistant *usecases.AssistantUseCase
	if agent != nil {
		assistant = usecases.NewAssistantUseCase(agent, reports, risk, logger)
	}

	files := &fakeFiles{}
	return &TelegramBot{
		reports:   reports,
		risk:      risk,
		assistant: assistant,
		fetchFile: files.fetch,
		logger:    logger,
	}, files
}

func commandMessage(text string) *tgbotapi.Message {
	cmd, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: 42},
		Chat:     &tgbotapi.Chat{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func send(t *testing.T, bot *TelegramBot, text string) reply {
	t.Helper()
	return bot.respond(context.Background(), commandMessage(text))
}

func TestHelpAndUnknownCommands(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	assert.Contains(t, send(t, bot, "/start").text, "Welcome to Flood Watch")
	assert.Equal(t, helpText, send(t, bot, "/help").text)
	assert.Equal(t, "Unknown command. Use /help to see available commands.", send(t, bot, "/launch").text)
}

func TestReportCommand(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	r := send(t, bot, "/report Jl. Slamet Riyadi 12, Solo; Knee; Sari; 08123456789")
	assert.Equal(t, usecases.MsgSubmitted+"\nReport #1", r.text)

	r = send(t, bot, "/today")
	assert.Contains(t, r.text, "Today's flood reports (1)")
	assert.Contains(t, r.text, "Jl. Slamet Riyadi 12, Solo")
	assert.Contains(t, r.text, "Knee deep")

	assert.Contains(t, send(t, bot, "/month").text, "This month's flood reports (1)")
	assert.Contains(t, send(t, bot, "/all").text, "All flood reports (1)")
	assert.Contains(t, send(t, bot, "/stats").text, "1 flood reports this month")
}

func TestReportCommand_Rejections(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	r := send(t, bot, "/report")
	assert.Contains(t, r.text, "Please describe the flood.")
	assert.Contains(t, r.text, reportUsage)

	r = send(t, bot, "/report Jl. Veteran; knee")
	assert.Contains(t, r.text, "separate address")

	r = send(t, bot, "/report Jl. Veteran; waist; Sari")
	assert.Equal(t, "Please choose a flood height: ankle, calf, knee or above-knee.", r.text)
}

func TestReportCommand_DailyLimit(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	for i := 0; i < usecases.DailyReportLimit; i++ {
		require.Contains(t, send(t, bot, "/report Jl. Veteran; ankle; Sari").text, usecases.MsgSubmitted)
	}
	assert.Equal(t, usecases.MsgDailyLimit, send(t, bot, "/report Jl. Veteran; ankle; Sari").text)
}

func TestReportWithPhotoCaption(t *testing.T) {
	bot, files := newTestBot(t, nil)

	msg := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 7},
		Chat:    &tgbotapi.Chat{ID: 7},
		Caption: "/report Jl. Veteran 3; calf; Budi",
		Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}
	r := bot.respond(context.Background(), msg)
	assert.Equal(t, usecases.MsgSubmitted+"\nReport #1", r.text)
	assert.Equal(t, []string{"large"}, files.requested)

	reports, err := bot.reports.GetTodayReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "tg:7", reports[0].SubmitterID)
	assert.NotEmpty(t, reports[0].PhotoURL)
}

func TestReportWithDocument(t *testing.T) {
	bot, files := newTestBot(t, nil)

	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 7},
		Caption:  "/report Jl. Veteran 3; calf; Budi",
		Document: &tgbotapi.Document{FileID: "doc", FileName: "notes.pdf"},
	}
	r := bot.respond(context.Background(), msg)
	assert.True(t, strings.HasPrefix(r.text, "Unsupported file format"))
	assert.Empty(t, files.requested)

	msg.Document = &tgbotapi.Document{FileID: "doc", FileName: "banjir.PNG"}
	r = bot.respond(context.Background(), msg)
	assert.Equal(t, usecases.MsgSubmitted+"\nReport #1", r.text)
	assert.Equal(t, []string{"doc"}, files.requested)
}

func TestReportWithPhoto_DownloadFails(t *testing.T) {
	bot, files := newTestBot(t, nil)
	files.err = errors.New("connection reset")

	msg := &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 7},
		Chat:    &tgbotapi.Chat{ID: 7},
		Caption: "/report Jl. Veteran 3; calf; Budi",
		Photo:   []tgbotapi.PhotoSize{{FileID: "large"}},
	}
	r := bot.respond(context.Background(), msg)
	assert.Equal(t, "Could not download your photo. Please try again.", r.text)

	reports, err := bot.reports.GetAllReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestPhotoWithoutReportCaption(t *testing.T) {
	bot, files := newTestBot(t, nil)

	msg := &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 7},
		Photo: []tgbotapi.PhotoSize{{FileID: "large"}},
	}
	assert.Contains(t, bot.respond(context.Background(), msg).text, reportUsage)
	assert.Empty(t, files.requested)
}

func TestRiskCommands(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	assert.Contains(t, send(t, bot, "/risk 250 140 90 24 32").text, "ANN risk: 1.000 (HIGH)")
	assert.Contains(t, send(t, bot, "/risk 250 140 90 30").text, "(HIGH)")
	assert.Contains(t, send(t, bot, "/risk 250 140").text, "Expected 4 to 5 numbers, got 2.")

	r := send(t, bot, "/gumbel 85 25")
	assert.Contains(t, r.text, "Gumbel risk: 0.552 (MEDIUM)")
	assert.Contains(t, r.text, "Return period: 25 years")
	assert.Contains(t, send(t, bot, "/gumbel").text, "Usage: /gumbel")
}

func TestLiveCommandFallsBack(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	r := send(t, bot, "/live")
	assert.Contains(t, r.text, "Live feed unavailable")
	assert.Contains(t, r.text, "Ngadipiro")
}

func TestModelCommand(t *testing.T) {
	bot, _ := newTestBot(t, nil)

	r := send(t, bot, "/model")
	assert.Contains(t, r.text, "Gumbel Type I")
	assert.Contains(t, r.text, prediction.ANNParameters().Name)
}

func TestExportCommand(t *testing.T) {
	bot, _ := newTestBot(t, nil)
	send(t, bot, "/report Jl. Veteran; knee; Sari")

	r := send(t, bot, "/export")
	require.NotNil(t, r.document)
	assert.Equal(t, "flood_reports_month_20261018.xlsx", r.document.Name)
	assert.NotEmpty(t, r.document.Bytes)
	assert.Equal(t, "Flood reports (month)", r.text)

	r = send(t, bot, "/export ALL")
	require.NotNil(t, r.document)
	assert.Equal(t, "flood_reports_all_20261018.xlsx", r.document.Name)

	r = send(t, bot, "/export yesterday")
	assert.Nil(t, r.document)
	assert.Contains(t, r.text, "unknown export scope")
}

func TestNonCommandMessages(t *testing.T) {
	bot, _ := newTestBot(t, nil)
	msg := &tgbotapi.Message{Text: "is it flooding?", Chat: &tgbotapi.Chat{ID: 1}}
	assert.Contains(t, bot.respond(context.Background(), msg).text, "/help")

	bot, _ = newTestBot(t, &fakeAgent{resp: &openai.AgentResponse{
		CommandName: openai.CommandGeneralQuery,
		UserMessage: "Use /report to tell us about a flood.",
	}})
	assert.Equal(t, "Use /report to tell us about a flood.", bot.respond(context.Background(), msg).text)
}

func TestSubmitterID(t *testing.T) {
	assert.Equal(t, "unknown", submitterID(nil))
	assert.Equal(t, "tg:123456", submitterID(&tgbotapi.User{ID: 123456}))
}

func TestCaptionCommand(t *testing.T) {
	tests := []struct {
		caption string
		cmd     string
		args    string
	}{
		{"/report a; b; c", "report", "a; b; c"},
		{"  /Report@FloodWatchBot a; b; c ", "report", "a; b; c"},
		{"/report", "report", ""},
		{"banjir di sini", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			cmd, args := captionCommand(tt.caption)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestParseReportArgs(t *testing.T) {
	req, err := parseReportArgs(" Jl. Veteran 3 ;above knee; Sari ")
	require.NoError(t, err)
	assert.Equal(t, "Jl. Veteran 3", req.Address)
	assert.Equal(t, entities.FloodHeightAboveKnee, req.FloodHeight)
	assert.Equal(t, "Sari", req.ReporterName)
	assert.Empty(t, req.ReporterPhone)

	req, err = parseReportArgs("a; knee; b; 0812")
	require.NoError(t, err)
	assert.Equal(t, "0812", req.ReporterPhone)

	_, err = parseReportArgs("a; knee; b; 0812; extra")
	assert.Error(t, err)
}

func TestParseNumbers(t *testing.T) {
	values, err := parseNumbers("150 125,5 85 24", 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{150, 125.5, 85, 24}, values)

	_, err = parseNumbers("150 deep 85 24", 4, 5)
	assert.EqualError(t, err, `"deep" is not a number.`)
}

func TestParseGumbelArgs(t *testing.T) {
	rainfall, period, err := parseGumbelArgs("120")
	require.NoError(t, err)
	assert.Equal(t, 120.0, rainfall)
	assert.Equal(t, prediction.DefaultReturnPeriod, period)

	rainfall, period, err = parseGumbelArgs("97,5 50")
	require.NoError(t, err)
	assert.Equal(t, 97.5, rainfall)
	assert.Equal(t, 50, period)

	_, _, err = parseGumbelArgs("120 0")
	assert.Error(t, err)
	_, _, err = parseGumbelArgs("120 25 3")
	assert.Error(t, err)
}
