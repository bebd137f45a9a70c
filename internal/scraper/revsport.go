package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shedview/shedview-api/internal/crypto"
)

// browserUserAgent is sent on every upstream request. The upstream WAF
// rejects obvious non-browser agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Asset is one bookable boat listed by the upstream.
type Asset struct {
	SourceID string
	RawName  string
}

// RawBooking is one calendar entry as returned by the upstream, before
// normalization.
type RawBooking struct {
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	MemberName string `json:"member_name"`
}

// DataSource is the capability set a booking upstream must provide.
// revsport is the only variant today; new upstreams implement this and
// the engine, scheduler and persistence stay oblivious.
type DataSource interface {
	Login(ctx context.Context) error
	ListAssets(ctx context.Context) ([]Asset, error)
	ListBookings(ctx context.Context, asset Asset, from, to time.Time) ([]RawBooking, error)
}

// RevsportSource scrapes a Laravel-style revSPORT booking site. Each
// instance holds one authenticated session: its own cookie jar, shared by
// all requests of one scrape and never across scrapes or clubs.
type RevsportSource struct {
	baseURL     string
	credentials crypto.Credentials
	client      *http.Client
	settleDelay time.Duration
}

// NewRevsportSource creates a session-scoped source for one scrape.
func NewRevsportSource(baseURL string, creds crypto.Credentials, timeout time.Duration) (*RevsportSource, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RevsportSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: creds,
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		settleDelay: time.Second,
	}, nil
}

// Login fetches the login form, extracts the CSRF token and posts the
// credentials. The upstream's response status is meaningless (it returns
// 200, 302 and 500 interchangeably); success is verified on the next
// protected-page fetch in ListAssets.
func (s *RevsportSource) Login(ctx context.Context) error {
	doc, err := s.getDocument(ctx, s.baseURL+"/login")
	if err != nil {
		return &UpstreamError{Reason: "failed to fetch login page", Err: err}
	}

	token := extractCSRFToken(doc)
	if token == "" {
		return &AuthError{Reason: "no CSRF token on login page"}
	}

	form := url.Values{
		"_token":   {token},
		"username": {s.credentials.Username},
		"password": {s.credentials.Password},
		"remember": {"on"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return &UpstreamError{Reason: "failed to build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return &UpstreamError{Reason: "login post failed", Err: err}
	}
	// Status intentionally ignored; drain so the connection is reusable.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// The upstream needs a moment to establish the session server-side
	// before the cookies are honored (observed quirk, not latency hiding).
	select {
	case <-time.After(s.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// ListAssets fetches the bookings page, verifies the session is actually
// authenticated and parses the boat cards.
func (s *RevsportSource) ListAssets(ctx context.Context) ([]Asset, error) {
	doc, err := s.getDocument(ctx, s.baseURL+"/bookings")
	if err != nil {
		return nil, &UpstreamError{Reason: "failed to fetch bookings page", Err: err}
	}

	if err := verifyAuthenticated(doc); err != nil {
		return nil, err
	}

	assets := parseAssetCards(doc)
	if len(assets) == 0 {
		return nil, &UpstreamError{Reason: "bookings page contains no boat cards"}
	}
	return assets, nil
}

// ListBookings fetches one boat's calendar for the given window.
func (s *RevsportSource) ListBookings(ctx context.Context, asset Asset, from, to time.Time) ([]RawBooking, error) {
	endpoint := fmt.Sprintf("%s/bookings/retrieve-calendar/%s?start=%s&end=%s",
		s.baseURL, url.PathEscape(asset.SourceID),
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UpstreamError{Reason: "failed to build calendar request", Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Reason: "calendar fetch failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Reason: fmt.Sprintf("calendar fetch for boat %s returned status %d", asset.SourceID, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &UpstreamError{Reason: "failed to read calendar body", Err: err}
	}

	var bookings []RawBooking
	if err := json.Unmarshal(body, &bookings); err != nil {
		return nil, &UpstreamError{Reason: fmt.Sprintf("calendar JSON for boat %s not parseable", asset.SourceID), Err: err}
	}
	return bookings, nil
}

// getDocument fetches a URL and parses it as HTML.
func (s *RevsportSource) getDocument(ctx context.Context, endpoint string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return goquery.NewDocumentFromReader(resp.Body)
}

// extractCSRFToken finds the Laravel CSRF token in either the hidden
// _token input or the csrf-token meta tag.
func extractCSRFToken(doc *goquery.Document) string {
	if token, ok := doc.Find(`input[name="_token"]`).First().Attr("value"); ok && token != "" {
		return token
	}
	if token, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content"); ok && token != "" {
		return token
	}
	return ""
}

// verifyAuthenticated checks a protected page for the logged-in shape: a
// logout link or form must be present and no login form may be present.
// Alert text is surfaced for diagnostics when verification fails.
func verifyAuthenticated(doc *goquery.Document) error {
	hasLogout := doc.Find(`a[href*="logout"], form[action*="logout"]`).Length() > 0
	hasLoginForm := doc.Find(`form[action*="login"]`).Length() > 0 ||
		doc.Find(`input[type="password"]`).Length() > 0

	if hasLogout && !hasLoginForm {
		return nil
	}

	reason := "page still shows a login form"
	if !hasLogout {
		reason = "no logout link on protected page"
	}
	if alert := extractAlertText(doc); alert != "" {
		reason = fmt.Sprintf("%s (upstream says: %s)", reason, alert)
	}
	return &AuthError{Reason: reason}
}

// extractAlertText collects upstream error banners for diagnostics.
func extractAlertText(doc *goquery.Document) string {
	var parts []string
	doc.Find(".alert-danger, .invalid-feedback").Each(func(_ int, sel *goquery.Selection) {
		if text := collapseWhitespace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "; ")
}

// parseAssetCards extracts (source_id, display name) pairs from the boat
// cards: the calendar link carries the ID, the first .mr-3 the name.
func parseAssetCards(doc *goquery.Document) []Asset {
	var assets []Asset
	seen := make(map[string]bool)

	doc.Find(`a[href*="/bookings/calendar/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		sourceID := sourceIDFromCalendarHref(href)
		if sourceID == "" || seen[sourceID] {
			return
		}

		name := ""
		if card := link.Closest(".card"); card.Length() > 0 {
			name = collapseWhitespace(card.Find(".mr-3").First().Text())
		}
		if name == "" {
			// Some upstream themes put the name block outside a .card.
			if wrapper := link.ParentsFiltered("div").FilterFunction(func(_ int, p *goquery.Selection) bool {
				return p.Find(".mr-3").Length() > 0
			}).First(); wrapper.Length() > 0 {
				name = collapseWhitespace(wrapper.Find(".mr-3").First().Text())
			}
		}
		if name == "" {
			name = collapseWhitespace(link.Text())
		}
		if name == "" {
			return
		}

		seen[sourceID] = true
		assets = append(assets, Asset{SourceID: sourceID, RawName: name})
	})

	return assets
}

func sourceIDFromCalendarHref(href string) string {
	const marker = "/bookings/calendar/"
	idx := strings.Index(href, marker)
	if idx < 0 {
		return ""
	}
	id := href[idx+len(marker):]
	if cut := strings.IndexAny(id, "?#/"); cut >= 0 {
		id = id[:cut]
	}
	return id
}
