package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

// DefaultWeatherBaseURL is the OpenWeatherMap API origin.
const DefaultWeatherBaseURL = "https://api.openweathermap.org"

// Weather looks up current conditions on OpenWeatherMap.
type Weather struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWeather creates a Weather tool. A nil client gets a 10 second timeout.
func NewWeather(baseURL, apiKey string, client *http.Client) *Weather {
	if baseURL == "" {
		baseURL = DefaultWeatherBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Weather{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, client: client}
}

// Tool returns the get_weather tool.
func (w *Weather) Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "get_weather",
		Description: "Get the current weather for a location. Uses the user's location when no coordinates are given.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"latitude":{"type":"number","description":"Latitude of the location"},"longitude":{"type":"number","description":"Longitude of the location"}}}`),
		Handler:     w.handle,
	}
}

type weatherInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// WeatherReport is the structured result of get_weather.
type WeatherReport struct {
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feelsLike"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (w *Weather) handle(ctx context.Context, call toolbox.Call) (toolbox.Output, error) {
	var in weatherInput
	if err := json.Unmarshal(call.Args, &in); err != nil {
		return toolbox.Failed("get_weather: invalid input"), nil
	}

	if (in.Latitude == nil || in.Longitude == nil) && call.Request.User != nil {
		in.Latitude, in.Longitude = call.Request.User.Latitude, call.Request.User.Longitude
	}
	if in.Latitude == nil || in.Longitude == nil {
		return toolbox.Failed("Missing location: provide latitude and longitude"), nil
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(*in.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(*in.Longitude, 'f', -1, 64))
	q.Set("units", "metric")
	q.Set("appid", w.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return toolbox.Output{}, fmt.Errorf("get_weather: create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return toolbox.Output{}, fmt.Errorf("get_weather: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read

	if resp.StatusCode != http.StatusOK {
		return toolbox.Failed(fmt.Sprintf("Weather service returned status %d", resp.StatusCode)), nil
	}

	var owm owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&owm); err != nil {
		return toolbox.Output{}, fmt.Errorf("get_weather: decode response: %w", err)
	}

	report := WeatherReport{
		Location:    owm.Name,
		Temperature: owm.Main.Temp,
		FeelsLike:   owm.Main.FeelsLike,
		Humidity:    owm.Main.Humidity,
		WindSpeed:   owm.Wind.Speed,
	}
	if len(owm.Weather) > 0 {
		report.Description = owm.Weather[0].Description
	}

	where := report.Location
	if where == "" {
		where = "the requested location"
	}

	return toolbox.Output{
		Content: fmt.Sprintf("It is %.0f°C with %s in %s (feels like %.0f°C).", report.Temperature, report.Description, where, report.FeelsLike),
		Data:    report,
	}, nil
}
