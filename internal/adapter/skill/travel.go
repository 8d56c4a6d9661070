package skill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"agentmesh/internal/domain"
)

// TravelAgent plans trips, suggests activities, and issues travel
// advisories. It consults the weather agent through the mesh so its
// answers adapt to conditions at the destination.
type TravelAgent struct {
	weather domain.AgentClient
	logger  *slog.Logger
}

// NewTravelAgent creates a travel agent. weather may be nil; weather
// lookups then report as unavailable.
func NewTravelAgent(weather domain.AgentClient, logger *slog.Logger) *TravelAgent {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TravelAgent{weather: weather, logger: logger}
}

// Card describes the agent's routing surface.
func (a *TravelAgent) Card() *domain.AgentCard {
	return &domain.AgentCard{
		Name:        "Travel Agent",
		Description: "Provides travel planning with weather information integration",
		Version:     "1.0.0",
		Skills: []domain.AgentSkill{
			{
				Name:        "Trip Planning",
				Description: "Plan a trip considering weather conditions",
				Tags:        []string{"travel", "planning", "itinerary", "vacation", "trip"},
				Examples:    []string{"Plan a 3-day trip to London considering weather", "What activities can I do in Tokyo based on weather?"},
			},
			{
				Name:        "Weather-Based Activities",
				Description: "Suggest activities based on weather forecast",
				Tags:        []string{"activities", "weather", "recommendations", "outdoor", "indoor"},
				Examples:    []string{"What should I do in Paris tomorrow if it rains?", "Outdoor activities in Sydney based on weather"},
			},
			{
				Name:        "Travel Advisory",
				Description: "Get travel advisories including weather alerts",
				Tags:        []string{"advisory", "warnings", "safety", "alerts"},
				Examples:    []string{"Any travel alerts for New York this weekend?", "Is it safe to travel to London next week?"},
			},
		},
	}
}

// Handle implements domain.Handler.
func (a *TravelAgent) Handle(ctx context.Context, msg domain.Message) (domain.Message, error) {
	query, _ := msg.Content.ExtractText()
	lower := strings.ToLower(query)
	location := extractCity(query)

	var answer string
	switch {
	case containsAny(lower, "plan", "trip", "visit", "itinerary"):
		answer = a.planTrip(ctx, msg.ConversationID, location, extractDays(query))
	case containsAny(lower, "activity", "activities", "do", "recommendation"):
		answer = a.suggestActivities(ctx, msg.ConversationID, location)
	case containsAny(lower, "advisory", "alert", "warning", "safe"):
		answer = a.travelAdvisory(ctx, msg.ConversationID, location)
	default:
		weather := a.askWeather(ctx, msg.ConversationID,
			fmt.Sprintf("What's the weather in %s?", location))
		answer = fmt.Sprintf("Here's some information about traveling to %s:\n\nWeather: %s\n\nFor a more specific response, try asking about planning a trip, recommended activities, or travel advisories for %s.",
			location, weather, location)
	}
	return domain.NewAgentReply(msg, domain.TextContent(answer)), nil
}

func (a *TravelAgent) planTrip(ctx context.Context, conversationID, location string, days int) string {
	forecast := a.askWeather(ctx, conversationID,
		fmt.Sprintf("What's the weather forecast for %s for the next %d days?", location, days))

	var b strings.Builder
	fmt.Fprintf(&b, "%d-Day Trip Plan for %s\n\n", days, location)
	fmt.Fprintf(&b, "Weather Forecast: %s\n\n", forecast)

	rainy := strings.Contains(strings.ToLower(forecast), "rain")
	for day := 1; day <= days; day++ {
		fmt.Fprintf(&b, "Day %d:\n", day)
		if rainy {
			b.WriteString("  - Morning: Visit a museum or gallery\n")
			b.WriteString("  - Afternoon: Indoor shopping or local cafes\n")
			b.WriteString("  - Evening: Enjoy local cuisine at a restaurant\n")
		} else {
			b.WriteString("  - Morning: Explore city landmarks\n")
			b.WriteString("  - Afternoon: Park visit or outdoor activities\n")
			b.WriteString("  - Evening: Sunset walk and dinner\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("This plan adapts to weather conditions to ensure you have the best experience!")
	return b.String()
}

func (a *TravelAgent) suggestActivities(ctx context.Context, conversationID, location string) string {
	weather := a.askWeather(ctx, conversationID,
		fmt.Sprintf("What's the current weather in %s?", location))
	lower := strings.ToLower(weather)

	goodWeather := containsAny(lower, "sunny", "clear", "mild", "warm", "nice")
	badWeather := containsAny(lower, "rain", "snow", "storm", "cold", "windy")

	var b strings.Builder
	fmt.Fprintf(&b, "Activity Suggestions for %s\n\n", location)
	fmt.Fprintf(&b, "Current Weather: %s\n\n", weather)

	switch {
	case goodWeather:
		b.WriteString("Outdoor Activities:\n")
		b.WriteString("  - City walking tour\n")
		b.WriteString("  - Visit to local parks\n")
		b.WriteString("  - Outdoor dining\n")
		b.WriteString("  - Sightseeing at landmarks\n")
		b.WriteString("  - Boat tour (if applicable)\n")
	case badWeather:
		b.WriteString("Indoor Activities:\n")
		b.WriteString("  - Museum visits\n")
		b.WriteString("  - Shopping malls\n")
		b.WriteString("  - Indoor attractions\n")
		b.WriteString("  - Local cafes and restaurants\n")
		b.WriteString("  - Theater or cinema\n")
	default:
		b.WriteString("Recommended Activities:\n")
		b.WriteString("  - Both indoor and outdoor options available\n")
		b.WriteString("  - Cultural venues\n")
		b.WriteString("  - Local cuisine exploration\n")
		b.WriteString("  - Landmark visits\n")
		b.WriteString("  - Shopping districts\n")
	}
	return b.String()
}

func (a *TravelAgent) travelAdvisory(ctx context.Context, conversationID, location string) string {
	alerts := a.askWeather(ctx, conversationID,
		fmt.Sprintf("Are there any weather alerts for %s?", location))

	var b strings.Builder
	fmt.Fprintf(&b, "Travel Advisory for %s\n\n", location)
	fmt.Fprintf(&b, "Weather Alerts: %s\n\n", alerts)
	b.WriteString("General Travel Tips:\n")
	b.WriteString("  - Always carry identification\n")
	b.WriteString("  - Keep emergency contact information handy\n")
	b.WriteString("  - Stay informed about local news\n")
	b.WriteString("  - Follow local regulations and customs\n")
	return b.String()
}

// askWeather queries the weather agent and degrades to an unavailable
// notice on any failure.
func (a *TravelAgent) askWeather(ctx context.Context, conversationID, query string) string {
	if a.weather == nil {
		return "Weather information unavailable"
	}
	resp, err := a.weather.Send(ctx, domain.NewUserMessage(query, conversationID))
	if err != nil {
		a.logger.Warn("weather agent query failed", "error", err)
		return "Weather information unavailable"
	}
	text, ok := resp.Content.ExtractText()
	if !ok {
		return "Weather information unavailable"
	}
	return text
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// extractDays pulls the first standalone number out of the query,
// defaulting to a 3-day trip.
func extractDays(query string) int {
	for _, word := range strings.Fields(query) {
		if n, err := strconv.Atoi(word); err == nil && n > 0 {
			return n
		}
	}
	return 3
}

var _ domain.Handler = (*TravelAgent)(nil)
