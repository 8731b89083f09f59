package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/abelzeko/flood-watch/internal/integration/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	resp *openai.AgentResponse
	err  error
	got  string
}

func (f *fakeAgent) InterpretUserQuery(_ context.Context, userMessage string) (*openai.AgentResponse, error) {
	f.got = userMessage
	return f.resp, f.err
}

func newAssistant(t *testing.T, agent openai.OpenAIService) (*AssistantUseCase, *fixture) {
	t.Helper()
	f := newFixture(t)
	risk, _ := newRiskUseCase(newStationRepo(t), &fakeFeed{})
	return NewAssistantUseCase(agent, f.uc, risk, nullLogger()), f
}

func TestHandleNaturalLanguageQuery_RiskEstimate(t *testing.T) {
	agent := &fakeAgent{resp: &openai.AgentResponse{
		CommandName: openai.CommandRiskEstimate,
		Rainfall:    250,
		WaterLevel:  140,
		Humidity:    90,
		Temperature: 30,
		UserMessage: "Menghitung risiko banjir...",
	}}
	assistant, _ := newAssistant(t, agent)

	reply, err := assistant.HandleNaturalLanguageQuery(context.Background(), "hujan deras 250mm, air 140")
	require.NoError(t, err)
	assert.Equal(t, "hujan deras 250mm, air 140", agent.got)
	assert.Contains(t, reply, "Menghitung risiko banjir...\n\n")
	assert.Contains(t, reply, "ANN risk: 1.000 (HIGH)")
}

func TestHandleNaturalLanguageQuery_RiskEstimateWithoutNumbers(t *testing.T) {
	assistant, _ := newAssistant(t, &fakeAgent{resp: &openai.AgentResponse{CommandName: openai.CommandRiskEstimate}})

	reply, err := assistant.HandleNaturalLanguageQuery(context.Background(), "is it dangerous?")
	require.NoError(t, err)
	assert.Contains(t, reply, "/risk")
}

func TestHandleNaturalLanguageQuery_Reports(t *testing.T) {
	ctx := context.Background()
	agent := &fakeAgent{}
	assistant, f := newAssistant(t, agent)
	require.True(t, f.uc.SubmitReport(ctx, validRequest("tg:1")).Success)

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandTodayReports}
	reply, err := assistant.HandleNaturalLanguageQuery(ctx, "what happened today?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Today's flood reports (1)")
	assert.Contains(t, reply, "Jl. Slamet Riyadi 12, Solo")

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandMonthlyStatistics, UserMessage: "Here you go"}
	reply, err = assistant.HandleNaturalLanguageQuery(ctx, "how many this month?")
	require.NoError(t, err)
	assert.Equal(t, "Here you go\n\n📅 2026-10: 1 flood reports this month", reply)

	agent.resp = &openai.AgentResponse{CommandName: openai.CommandYearlyStatistics}
	reply, err = assistant.HandleNaturalLanguageQuery(ctx, "trend this year")
	require.NoError(t, err)
	assert.Contains(t, reply, "Total: 1")
}

func TestHandleNaturalLanguageQuery_GeneralAndErrors(t *testing.T) {
	ctx := context.Background()

	assistant, _ := newAssistant(t, &fakeAgent{resp: &openai.AgentResponse{CommandName: openai.CommandGeneralQuery, UserMessage: "Halo! Use /report to submit."}})
	reply, err := assistant.HandleNaturalLanguageQuery(ctx, "halo")
	require.NoError(t, err)
	assert.Equal(t, "Halo! Use /report to submit.", reply)

	assistant, _ = newAssistant(t, &fakeAgent{resp: &openai.AgentResponse{CommandName: "DeleteEverything"}})
	reply, err = assistant.HandleNaturalLanguageQuery(ctx, "drop table")
	require.NoError(t, err)
	assert.Contains(t, reply, "/help")

	assistant, _ = newAssistant(t, &fakeAgent{err: errors.New("rate limited")})
	reply, err = assistant.HandleNaturalLanguageQuery(ctx, "halo")
	require.NoError(t, err)
	assert.Contains(t, reply, "trouble understanding")
}
