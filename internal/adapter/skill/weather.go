package skill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"agentmesh/internal/domain"
)

// ToolCaller invokes a named tool on an external tool server. The weather
// agent uses it to reach an MCP weather backend when one is configured.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// knownCities are the locations the agent recognizes in queries.
var knownCities = []string{
	"london", "paris", "new york", "tokyo", "sydney",
	"berlin", "rome", "madrid", "cairo", "mumbai",
}

type cityWeather struct {
	condition   string
	temperature string
	humidity    string
	wind        string
}

var currentWeather = map[string]cityWeather{
	"London":   {"Rainy", "15°C (59°F)", "85%", "18 km/h"},
	"Paris":    {"Sunny", "22°C (72°F)", "60%", "10 km/h"},
	"New York": {"Partly Cloudy", "18°C (64°F)", "65%", "15 km/h"},
	"Tokyo":    {"Clear", "24°C (75°F)", "70%", "8 km/h"},
	"Sydney":   {"Mild", "20°C (68°F)", "75%", "12 km/h"},
}

type forecastDay struct {
	day       string
	condition string
	high      string
	low       string
}

var forecasts = map[string][]forecastDay{
	"London": {
		{"Today", "Rainy", "15°C", "10°C"},
		{"Tomorrow", "Cloudy", "17°C", "12°C"},
		{"Day 3", "Partly Cloudy", "18°C", "11°C"},
	},
	"Paris": {
		{"Today", "Sunny", "22°C", "14°C"},
		{"Tomorrow", "Clear", "24°C", "16°C"},
		{"Day 3", "Partly Cloudy", "21°C", "15°C"},
	},
}

// WeatherAgent answers current weather and forecast queries from fixture
// data. When a ToolCaller is attached, current conditions come from the
// MCP weather backend instead, with the fixtures as fallback.
type WeatherAgent struct {
	tools  ToolCaller
	logger *slog.Logger
}

// WeatherOption configures a WeatherAgent.
type WeatherOption func(*WeatherAgent)

// WithToolCaller attaches an MCP weather backend.
func WithToolCaller(tc ToolCaller) WeatherOption {
	return func(a *WeatherAgent) { a.tools = tc }
}

// WithWeatherLogger sets the agent logger.
func WithWeatherLogger(logger *slog.Logger) WeatherOption {
	return func(a *WeatherAgent) { a.logger = logger }
}

func NewWeatherAgent(opts ...WeatherOption) *WeatherAgent {
	a := &WeatherAgent{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Card describes the agent's routing surface.
func (a *WeatherAgent) Card() *domain.AgentCard {
	return &domain.AgentCard{
		Name:        "Weather Agent",
		Description: "Provides current weather information and forecasts",
		Version:     "1.0.0",
		Skills: []domain.AgentSkill{
			{
				Name:        "Current Weather",
				Description: "Get current weather conditions for a location",
				Tags:        []string{"weather", "current", "temperature", "conditions", "forecast"},
				Examples:    []string{"What's the weather in London?", "Is it raining in Tokyo?"},
			},
			{
				Name:        "Weather Forecast",
				Description: "Get weather forecast for the coming days",
				Tags:        []string{"weather", "forecast", "prediction", "upcoming", "future"},
				Examples:    []string{"What's the forecast for Paris?", "Will it rain in New York tomorrow?"},
			},
		},
	}
}

// Handle implements domain.Handler.
func (a *WeatherAgent) Handle(ctx context.Context, msg domain.Message) (domain.Message, error) {
	query, _ := msg.Content.ExtractText()
	city := extractCity(query)

	var answer string
	if strings.Contains(strings.ToLower(query), "forecast") {
		answer = a.forecast(city)
	} else {
		answer = a.current(ctx, city)
	}
	return domain.NewAgentReply(msg, domain.TextContent(answer)), nil
}

func (a *WeatherAgent) current(ctx context.Context, city string) string {
	if a.tools != nil {
		text, err := a.tools.CallTool(ctx, "get_current_weather", map[string]any{
			"location": city,
		})
		if err == nil {
			return text
		}
		a.logger.Warn("weather tool call failed, using fixtures", "city", city, "error", err)
	}

	data, ok := currentWeather[city]
	if !ok {
		data = cityWeather{"Unknown", "N/A", "N/A", "N/A"}
	}
	return fmt.Sprintf("Current Weather in %s:\nCondition: %s\nTemperature: %s\nHumidity: %s\nWind Speed: %s",
		city, data.condition, data.temperature, data.humidity, data.wind)
}

func (a *WeatherAgent) forecast(city string) string {
	days, ok := forecasts[city]
	if !ok {
		days = []forecastDay{
			{"Today", "Unknown", "N/A", "N/A"},
			{"Tomorrow", "Unknown", "N/A", "N/A"},
			{"Day 3", "Unknown", "N/A", "N/A"},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "3-Day Weather Forecast for %s:\n\n", city)
	for _, d := range days {
		fmt.Fprintf(&b, "%s: %s, High: %s, Low: %s\n", d.day, d.condition, d.high, d.low)
	}
	return b.String()
}

// extractCity returns the first known city mentioned in the query,
// defaulting to London.
func extractCity(query string) string {
	lower := strings.ToLower(query)
	for _, city := range knownCities {
		if strings.Contains(lower, city) {
			return titleCase(city)
		}
	}
	return "London"
}

// titleCase capitalizes each word of a lowercase city name.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var _ domain.Handler = (*WeatherAgent)(nil)
