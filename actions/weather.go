package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

const defaultWeatherBaseURL = "https://api.openweathermap.org"

// ErrInvalidLocation means the weather provider doesn't know the location.
var ErrInvalidLocation = errors.New("invalid location")

// WeatherClient queries OpenWeatherMap for current conditions.
type WeatherClient struct {
	APIKey     string
	HTTPClient *http.Client
	BaseURL    string // overridable for tests
}

type weatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

func (wc *WeatherClient) http() *http.Client {
	if wc.HTTPClient != nil {
		return wc.HTTPClient
	}
	return http.DefaultClient
}

func (wc *WeatherClient) get(ctx context.Context, location string) (*weatherResponse, error) {
	base := wc.BaseURL
	if base == "" {
		base = defaultWeatherBaseURL
	}
	u := fmt.Sprintf("%s/data/2.5/weather?q=%s&appid=%s&units=metric",
		base, url.QueryEscape(location), url.QueryEscape(wc.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := wc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrInvalidLocation
	default:
		return nil, fmt.Errorf("weather request failed: %s", resp.Status)
	}
	var wr weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, err
	}
	return &wr, nil
}

// Weather returns the handler producing "City, CC: 20°C, clear sky" replies.
// Integration failures become a human-readable fallback string, not an error.
func Weather(client *WeatherClient) Handler {
	return func(ctx context.Context, args []string, channel string) (string, error) {
		location, err := firstArg(args)
		if err != nil {
			return "", err
		}
		wr, err := client.get(ctx, location)
		if err != nil {
			if errors.Is(err, ErrInvalidLocation) {
				return "location not found", nil
			}
			return fmt.Sprintf("Failed getting weather: %v", err), nil
		}
		description := ""
		if len(wr.Weather) > 0 {
			description = wr.Weather[0].Description
		}
		return fmt.Sprintf("%s, %s: %g°C, %s", wr.Name, wr.Sys.Country, wr.Main.Temp, description), nil
	}
}
