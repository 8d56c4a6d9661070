// Package mcptool hosts the weather MCP server the mesh ships with and a
// bridge that exposes remote MCP tools to in-process agents.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type weatherFixture struct {
	Condition     string
	Temperature   float64
	Humidity      float64
	Wind          int
	Precipitation float64
}

var weatherData = map[string]weatherFixture{
	"london":   {"Rainy", 15, 85, 18, 0.8},
	"paris":    {"Sunny", 22, 60, 10, 0.0},
	"new york": {"Partly Cloudy", 18, 65, 15, 0.2},
	"tokyo":    {"Clear", 24, 70, 8, 0.0},
	"sydney":   {"Mild", 20, 75, 12, 0.1},
}

var forecastConditions = []string{"Sunny", "Partly Cloudy", "Cloudy", "Rainy", "Clear"}

// WeatherServer is an MCP server serving simulated weather data. Readings
// carry small random variations so repeated calls look live.
type WeatherServer struct {
	mcp *server.MCPServer
	rng *rand.Rand
	now func() time.Time
}

// NewWeatherServer builds the server and registers its tools.
func NewWeatherServer() *WeatherServer {
	s := &WeatherServer{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	s.mcp = server.NewMCPServer(
		"weather-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool(
		"get_current_weather",
		mcp.WithDescription("Get current weather conditions for a location"),
		mcp.WithString("location",
			mcp.Description("The name of the location to get weather for"),
			mcp.Required(),
		),
	), s.handleCurrentWeather)

	s.mcp.AddTool(mcp.NewTool(
		"get_weather_forecast",
		mcp.WithDescription("Get weather forecast for a location"),
		mcp.WithString("location",
			mcp.Description("The name of the location to get forecast for"),
			mcp.Required(),
		),
		mcp.WithNumber("days",
			mcp.Description("Number of days to forecast (default: 3, max: 7)"),
		),
	), s.handleForecast)

	s.mcp.AddTool(mcp.NewTool(
		"get_weather_alert",
		mcp.WithDescription("Get weather alerts for a location"),
		mcp.WithString("location",
			mcp.Description("The name of the location to get alerts for"),
			mcp.Required(),
		),
	), s.handleAlert)

	return s
}

// ServeHTTP starts a streamable HTTP listener on addr and blocks.
func (s *WeatherServer) ServeHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcp).Start(addr)
}

// ServeStdio serves the MCP protocol over stdin/stdout and blocks.
func (s *WeatherServer) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *WeatherServer) handleCurrentWeather(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := request.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	location = strings.ToLower(location)

	data, ok := weatherData[location]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Weather data not available for %s", location)), nil
	}

	result := map[string]any{
		"location":         titleCase(location),
		"condition":        data.Condition,
		"temperature":      round1(data.Temperature + s.rng.Float64()*2 - 1),
		"temperature_unit": "celsius",
		"humidity":         clampPercent(data.Humidity + s.rng.Float64()*10 - 5),
		"wind_speed":       data.Wind,
		"wind_unit":        "km/h",
		"timestamp":        s.now().Format(time.RFC3339),
	}
	return jsonResult(result)
}

func (s *WeatherServer) handleForecast(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := request.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	location = strings.ToLower(location)
	days := request.GetInt("days", 3)
	if days < 1 {
		days = 1
	}
	if days > 7 {
		days = 7
	}

	data, ok := weatherData[location]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Weather data not available for %s", location)), nil
	}

	forecast := make([]map[string]any, 0, days)
	for i := 0; i < days; i++ {
		tempVariation := s.rng.Float64()*6 - 3

		condition := data.Condition
		if s.rng.Float64() > 0.7 {
			condition = forecastConditions[s.rng.Intn(len(forecastConditions))]
		}

		chance := int(s.rng.Float64() * 30)
		if strings.Contains(condition, "Rainy") {
			chance = int(s.rng.Float64() * 100)
		}

		forecast = append(forecast, map[string]any{
			"date":                 s.now().AddDate(0, 0, i).Format("2006-01-02"),
			"condition":            condition,
			"temperature_high":     round1(data.Temperature + tempVariation + 2),
			"temperature_low":      round1(data.Temperature + tempVariation - 4),
			"temperature_unit":     "celsius",
			"humidity":             clampPercent(data.Humidity + s.rng.Float64()*20 - 10),
			"precipitation_chance": chance,
		})
	}

	return jsonResult(map[string]any{
		"location":     titleCase(location),
		"forecast":     forecast,
		"generated_at": s.now().Format(time.RFC3339),
	})
}

func (s *WeatherServer) handleAlert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := request.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	location = strings.ToLower(location)

	if _, ok := weatherData[location]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Weather data not available for %s", location)), nil
	}

	alerts := []map[string]any{}
	if s.rng.Float64() < 0.3 {
		alertTypes := []string{"Flood", "High Wind", "Thunderstorm", "Extreme Heat", "Heavy Rain"}
		severities := []string{"Minor", "Moderate", "Severe"}
		alertType := alertTypes[s.rng.Intn(len(alertTypes))]
		alerts = append(alerts, map[string]any{
			"type":        alertType,
			"severity":    severities[s.rng.Intn(len(severities))],
			"description": fmt.Sprintf("%s warning for %s area", alertType, titleCase(location)),
			"issued_at":   s.now().Add(-time.Duration(1+s.rng.Intn(6)) * time.Hour).Format(time.RFC3339),
			"expires_at":  s.now().Add(time.Duration(6+s.rng.Intn(19)) * time.Hour).Format(time.RFC3339),
		})
	}

	return jsonResult(map[string]any{
		"location":  titleCase(location),
		"alerts":    alerts,
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func clampPercent(f float64) int {
	n := int(math.Round(f))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
