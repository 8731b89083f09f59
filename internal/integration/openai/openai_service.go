package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// Commands the agent may return.
const (
	CommandRiskEstimate      = "RiskEstimate"
	CommandTodayReports      = "TodayReports"
	CommandMonthlyStatistics = "MonthlyStatistics"
	CommandYearlyStatistics  = "YearlyStatistics"
	CommandGeneralQuery      = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string  `json:"command_name" jsonschema_description:"The command to execute: RiskEstimate, TodayReports, MonthlyStatistics, YearlyStatistics or GeneralQuery"`
	Rainfall    float64 `json:"rainfall" jsonschema_description:"Rainfall in mm mentioned by the user, 0 if not given"`
	WaterLevel  float64 `json:"water_level" jsonschema_description:"River water level in mdpl mentioned by the user, 0 if not given"`
	Humidity    float64 `json:"humidity" jsonschema_description:"Relative humidity in percent mentioned by the user, 0 if not given"`
	Temperature float64 `json:"temperature" jsonschema_description:"Air temperature in Celsius mentioned by the user, 0 if not given"`
	UserMessage string  `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
	logger logrus.FieldLogger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string, logger logrus.FieldLogger, opts ...option.RequestOption) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
		logger: logger,
	}, nil
}

const systemPrompt = `You are the assistant of a community flood watch bot for the Bengawan Solo river basin in Central Java.
Citizens use the bot to report floods and to check flood risk. You understand Indonesian, Javanese and English and you always reply in the user's language, briefly and calmly.

Behavior:
1. The user describes weather or river conditions, or asks how dangerous a situation is:
   - command_name = "RiskEstimate"
   - Fill rainfall (mm), water_level (mdpl), humidity (%) and temperature (°C) with the numbers the user gave; use 0 for anything missing.
   - user_message: a one-line confirmation that you are estimating the risk.
2. The user asks what was reported today:
   - command_name = "TodayReports"
3. The user asks about this month's report count:
   - command_name = "MonthlyStatistics"
4. The user asks about the trend over the past year:
   - command_name = "YearlyStatistics"
5. Anything else (greetings, questions about the bot, small talk):
   - command_name = "GeneralQuery"
   - user_message: a short helpful reply. Mention /report to submit a flood report and /help for commands.

For commands 2 to 5 set all numbers to 0.

Output **strictly** in JSON.`

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, weather inputs, and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})

	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	var agentResp AgentResponse
	err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &agentResp)
	if err != nil {
		s.logger.WithError(err).WithField("raw_response", chat.Choices[0].Message.Content).Error("Failed to unmarshal OpenAI response")
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	return &agentResp, nil
}
