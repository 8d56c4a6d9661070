// Package classifier implements query classification against AWS Bedrock.
// The mesh's AI router delegates here when keyword scoring is not enough.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/trace"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
	"agentmesh/internal/infra/tracer"
)

const classifyMaxTokens = 256

const systemPrompt = `You route user queries to agents in a multi-agent network.
You are given the list of available agents with their descriptions and skills,
followed by a user query. Pick the single best agent for the query.
Respond with ONLY a JSON object of the form
{"agent": "<agent name>", "confidence": <0.0-1.0>}
and nothing else.`

// converseAPI abstracts the Bedrock runtime for testability.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClassifier implements domain.Classifier via the Bedrock Converse API.
type BedrockClassifier struct {
	model  string
	client converseAPI
	logger *slog.Logger
}

// NewBedrockClassifier creates a classifier using the default AWS credential
// chain.
func NewBedrockClassifier(cfg config.ClassifierConfig, logger *slog.Logger) (*BedrockClassifier, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockClassifier{
		model:  cfg.Model,
		client: bedrockruntime.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// newBedrockClassifierWithClient creates a classifier with an injected
// client (for testing).
func newBedrockClassifierWithClient(model string, client converseAPI, logger *slog.Logger) *BedrockClassifier {
	return &BedrockClassifier{model: model, client: client, logger: logger}
}

// Classify implements domain.Classifier.
func (c *BedrockClassifier) Classify(ctx context.Context, query, capabilityContext string) (domain.Decision, error) {
	ctx, span := tracer.StartSpan(ctx, "classifier.classify",
		trace.WithAttributes(tracer.StringAttr("classifier.model", c.model)),
	)
	defer span.End()

	prompt := fmt.Sprintf("Available agents:\n%s\n\nUser query: %s", capabilityContext, query)

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: prompt},
			},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(classifyMaxTokens),
			Temperature: aws.Float32(0),
		},
	}

	output, err := c.client.Converse(ctx, input)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Decision{}, mapBedrockError(err)
	}

	text := extractText(output)
	decision, err := parseDecision(text)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Decision{}, domain.NewDomainError("BedrockClassifier.Classify",
			domain.ErrClassifier, fmt.Sprintf("parse response %q: %v", text, err))
	}

	tracer.SetOK(span)
	c.logger.Debug("query classified", "agent", decision.Agent, "confidence", decision.Confidence)
	return decision, nil
}

func extractText(output *bedrockruntime.ConverseOutput) string {
	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(t.Value)
		}
	}
	return b.String()
}

// parseDecision pulls the decision JSON out of the model's reply. Models
// sometimes wrap the object in prose or code fences, so parsing starts at
// the first brace.
func parseDecision(text string) (domain.Decision, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return domain.Decision{}, errors.New("no JSON object in response")
	}

	var parsed struct {
		Agent      string  `json:"agent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return domain.Decision{}, err
	}
	if parsed.Agent == "" {
		return domain.Decision{}, errors.New("empty agent name")
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return domain.Decision{Agent: parsed.Agent, Confidence: confidence}, nil
}

func mapBedrockError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return domain.NewDomainError("BedrockClassifier.Classify", domain.ErrClassifier,
			fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()))
	}
	return domain.NewDomainError("BedrockClassifier.Classify", domain.ErrClassifier, err.Error())
}

var _ domain.Classifier = (*BedrockClassifier)(nil)
