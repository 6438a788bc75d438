package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/medscan-resolver/internal/domain"
)

// ErrNotFound is returned when the label service has no entry for a name
var ErrNotFound = errors.New("no drug label found")

const (
	defaultOpenFDABaseURL     = "https://api.fda.gov"
	defaultRequestsPerMinute  = 240
	openFDAUserAgent          = "medscan-resolver/1.0"
	maxLabelResponseBodyBytes = 4 << 20
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

// SanitizeDrugName strips everything except ASCII letters, digits and spaces
func SanitizeDrugName(name string) string {
	return strings.TrimSpace(unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), ""))
}

// OpenFDAClient queries the openFDA drug label endpoint
type OpenFDAClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// NewOpenFDAClient creates a new openFDA client
func NewOpenFDAClient(config domain.OpenFDAConfig) *OpenFDAClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenFDABaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaultRequestsPerMinute
	}

	perSecond := float64(config.RequestsPerMinute) / 60
	burst := max(1, config.RequestsPerMinute/60)

	return &OpenFDAClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

type labelSearchResponse struct {
	Results []labelResult `json:"results"`
}

type labelResult struct {
	OpenFDA struct {
		BrandName   []string `json:"brand_name"`
		GenericName []string `json:"generic_name"`
	} `json:"openfda"`
	Purpose                 []string `json:"purpose"`
	IndicationsAndUsage     []string `json:"indications_and_usage"`
	Warnings                []string `json:"warnings"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
	StopUse                 []string `json:"stop_use"`
	DoNotUse                []string `json:"do_not_use"`
}

// SearchLabel looks name up by brand or generic name and returns the first label.
// It returns ErrNotFound for a 404 or an empty result set.
func (c *OpenFDAClient) SearchLabel(ctx context.Context, name string) (*domain.VerificationResult, error) {
	sanitized := SanitizeDrugName(name)
	if sanitized == "" {
		return nil, ErrNotFound
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(sanitized), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create label request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", openFDAUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute label request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openFDA returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLabelResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read label response: %w", err)
	}

	var search labelSearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("failed to parse label response: %w", err)
	}
	if len(search.Results) == 0 {
		return nil, ErrNotFound
	}

	return toVerificationResult(name, search.Results[0]), nil
}

func (c *OpenFDAClient) searchURL(sanitized string) string {
	term := url.PathEscape(sanitized)
	query := fmt.Sprintf("search=(openfda.brand_name:%%22%s%%22+openfda.generic_name:%%22%s%%22)&limit=1", term, term)
	if c.apiKey != "" {
		query += "&api_key=" + url.QueryEscape(c.apiKey)
	}
	return c.baseURL + "/drug/label.json?" + query
}

func toVerificationResult(queried string, label labelResult) *domain.VerificationResult {
	brand := first(label.OpenFDA.BrandName)
	if brand == "" {
		brand = strings.TrimSpace(queried)
	}
	generic := first(label.OpenFDA.GenericName)
	if generic == "" {
		generic = brand
	}

	return &domain.VerificationResult{
		BrandName:               brand,
		GenericName:             generic,
		Purpose:                 first(label.Purpose),
		IndicationsAndUsage:     first(label.IndicationsAndUsage),
		Warnings:                first(label.Warnings),
		DosageAndAdministration: first(label.DosageAndAdministration),
		StopUse:                 first(label.StopUse),
		DoNotUse:                first(label.DoNotUse),
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
