package translation

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/resilience"
)

// DefaultGoogleURL is the mobile web translation endpoint.
const DefaultGoogleURL = "https://translate.google.com/m"

const (
	googleTimeout   = 5 * time.Second
	googleUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	resultSelector  = ".result-container"
)

// GoogleWeb scrapes the Google Translate mobile page.
type GoogleWeb struct {
	baseURL string
	client  *http.Client
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewGoogleWeb creates a provider against baseURL (DefaultGoogleURL when empty).
func NewGoogleWeb(baseURL string) *GoogleWeb {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	return &GoogleWeb{
		baseURL: baseURL,
		client:  &http.Client{Timeout: googleTimeout},
		breaker: resilience.New(resilience.TranslateConfig()),
		retry:   resilience.TranslateRetryConfig(),
	}
}

// Translate implements Provider.
func (g *GoogleWeb) Translate(ctx context.Context, src, dst, text string) (string, error) {
	q := url.Values{}
	q.Set("sl", strings.ToLower(src))
	q.Set("tl", strings.ToLower(dst))
	q.Set("q", text)
	target := g.baseURL + "?" + q.Encode()

	var out string
	err := resilience.Retry(ctx, g.retry, func() error {
		return g.breaker.Execute(func() error {
			v, err := g.fetch(ctx, target)
			out = v
			return err
		})
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TranslationFailed, "google web translate").
			WithMetadata("src", src).WithMetadata("dst", dst)
	}
	return out, nil
}

func (g *GoogleWeb) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", googleUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &resilience.HTTPStatusError{StatusCode: resp.StatusCode, URL: g.baseURL}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	sel := doc.Find(resultSelector).First()
	if sel.Length() == 0 {
		return "", apperrors.New(apperrors.Internal, "result container not found")
	}
	return strings.TrimSpace(sel.Text()), nil
}
