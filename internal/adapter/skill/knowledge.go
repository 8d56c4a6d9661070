package skill

import (
	"context"
	"strings"

	"agentmesh/internal/domain"
)

// knowledgeBase holds the canned answers. Lookup is by substring match
// against the lowercased query.
var knowledgeBase = map[string]string{
	"capital of japan":        "The capital of Japan is Tokyo, which is also the largest city in Japan with a population of over 13 million people.",
	"capital of france":       "The capital of France is Paris, often called the 'City of Light' (La Ville Lumière).",
	"photosynthesis":          "Photosynthesis is the process used by plants, algae, and certain bacteria to convert light energy, usually from the sun, into chemical energy in the form of glucose or other sugars. The basic equation is: 6CO₂ + 6H₂O + light energy → C₆H₁₂O₆ + 6O₂.",
	"artificial intelligence": "Artificial Intelligence (AI) refers to systems or machines that mimic human intelligence to perform tasks and can iteratively improve themselves based on the information they collect. Common AI applications include machine learning, natural language processing, computer vision, and robotics.",
}

// KnowledgeAgent answers general knowledge questions from a small canned
// knowledge base.
type KnowledgeAgent struct{}

func NewKnowledgeAgent() *KnowledgeAgent { return &KnowledgeAgent{} }

// Card describes the agent's routing surface.
func (a *KnowledgeAgent) Card() *domain.AgentCard {
	return &domain.AgentCard{
		Name:        "Knowledge Agent",
		Description: "Provides factual information and answers to general knowledge questions across various domains",
		Version:     "1.0.0",
		Skills: []domain.AgentSkill{
			{
				Name:        "Facts and Information",
				Description: "Answer factual questions about history, science, geography, and other general topics",
				Tags:        []string{"knowledge", "facts", "information", "questions", "general"},
				Examples:    []string{"What is the capital of Japan?", "When was the Declaration of Independence signed?"},
			},
			{
				Name:        "Definitions and Concepts",
				Description: "Explain and define terms, concepts, and ideas",
				Tags:        []string{"definition", "meaning", "concept", "explanation", "define"},
				Examples:    []string{"What is photosynthesis?", "Define quantum physics"},
			},
		},
	}
}

// Handle implements domain.Handler.
func (a *KnowledgeAgent) Handle(ctx context.Context, msg domain.Message) (domain.Message, error) {
	query, _ := msg.Content.ExtractText()
	lower := strings.ToLower(query)

	for key, answer := range knowledgeBase {
		if strings.Contains(lower, key) {
			return domain.NewAgentReply(msg, domain.TextContent(answer)), nil
		}
	}
	return domain.NewAgentReply(msg, domain.TextContent(
		"I don't have specific information on that question in my knowledge base. As a simulated agent, I have access to only a limited set of predefined answers.")), nil
}

var _ domain.Handler = (*KnowledgeAgent)(nil)
