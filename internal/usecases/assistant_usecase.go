package usecases

import (
	"context"

	"github.com/abelzeko/flood-watch/internal/integration/openai"
	"github.com/sirupsen/logrus"
)

// AssistantUseCase answers free-text messages through the OpenAI agent
type AssistantUseCase struct {
	openAIService openai.OpenAIService
	reports       *ReportUseCase
	risk          *RiskUseCase
	logger        logrus.FieldLogger
}

// NewAssistantUseCase creates a new assistant use case
func NewAssistantUseCase(openAIService openai.OpenAIService, reports *ReportUseCase, risk *RiskUseCase, logger logrus.FieldLogger) *AssistantUseCase {
	return &AssistantUseCase{
		openAIService: openAIService,
		reports:       reports,
		risk:          risk,
		logger:        logger,
	}
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *AssistantUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	uc.logger.WithField("query", query).Info("Interpreting natural language query")

	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query)
	if err != nil {
		uc.logger.WithError(err).Error("Error interpreting user query via OpenAI")
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	uc.logger.WithFields(logrus.Fields{
		"command": agentResp.CommandName,
		"message": agentResp.UserMessage,
	}).Info("Agent response received")

	switch agentResp.CommandName {
	case openai.CommandRiskEstimate:
		if agentResp.Rainfall == 0 && agentResp.WaterLevel == 0 {
			return withAgentMessage(agentResp.UserMessage,
				"Tell me the rainfall (mm) and water level (mdpl), or use /risk rainfall level humidity temperature."), nil
		}
		a := uc.risk.PredictManual(agentResp.Rainfall, agentResp.WaterLevel, agentResp.Humidity, agentResp.Temperature)
		return withAgentMessage(agentResp.UserMessage, FormatAssessment(a)), nil

	case openai.CommandTodayReports:
		reports, err := uc.reports.GetTodayReports(ctx)
		if err != nil {
			uc.logger.WithError(err).Error("Error fetching today's reports after agent interpretation")
			return "Sorry, I couldn't fetch today's reports right now.", nil
		}
		return withAgentMessage(agentResp.UserMessage, FormatReports("Today's flood reports", reports)), nil

	case openai.CommandMonthlyStatistics:
		return withAgentMessage(agentResp.UserMessage, FormatMonthlyStatistics(uc.reports.GetMonthlyStatistics(ctx))), nil

	case openai.CommandYearlyStatistics:
		return withAgentMessage(agentResp.UserMessage, FormatYearlyStatistics(uc.reports.GetYearlyStatistics(ctx))), nil

	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil

	default:
		uc.logger.WithField("command", agentResp.CommandName).Warn("Agent returned unexpected command")
		return "I'm not sure how to respond to that. You can use /help for commands.", nil
	}
}

func withAgentMessage(agentMessage, body string) string {
	if agentMessage == "" {
		return body
	}
	return agentMessage + "\n\n" + body
}
