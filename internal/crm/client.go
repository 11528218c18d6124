// Package crm is the Aspro.Cloud client: project roster, comments and
// calendar events. The API authenticates with an api_key query parameter and
// accepts form-encoded POST bodies.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client is a retrying HTTP client for the Aspro.Cloud API. Transient
// statuses (429, 5xx) are retried with fibonacci backoff; everything above
// this boundary sees only the final outcome.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    uint64
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithRetries overrides the transient-failure retry budget.
func WithRetries(retries uint64) Option {
	return func(c *Client) { c.retries = retries }
}

func NewClient(apiKey, company string, opts ...Option) *Client {
	c := &Client{
		baseURL:    fmt.Sprintf("https://%s.aspro.cloud/api/v1", company),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retries:    3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Project is one entry of the CRM project roster. The archived flag arrives
// in several shapes (bool, number, string), so it stays raw until the roster
// reconciler normalizes it.
type Project struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	IsArchive json.RawMessage `json:"is_archive"`
}

// Calendar is a CRM calendar reference.
type Calendar struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListProjects pages through the full project roster.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	for page := 1; ; page++ {
		body, err := c.get(ctx, "/module/st/projects/list", url.Values{"page": {fmt.Sprint(page)}})
		if err != nil {
			return nil, fmt.Errorf("list projects page %d: %w", page, err)
		}

		var parsed struct {
			Response struct {
				Items []Project `json:"items"`
				Total int       `json:"total"`
			} `json:"response"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode projects page %d: %w", page, err)
		}

		if len(parsed.Response.Items) == 0 {
			break
		}
		projects = append(projects, parsed.Response.Items...)
		if len(projects) >= parsed.Response.Total {
			break
		}
	}
	return projects, nil
}

// CreateComment posts an HTML comment to a project feed.
func (c *Client) CreateComment(ctx context.Context, projectID int64, text string) error {
	path := fmt.Sprintf("/module/st/projects/%d/comments/create", projectID)
	if _, err := c.postForm(ctx, path, url.Values{"text": {text}}); err != nil {
		return fmt.Errorf("create comment on project %d: %w", projectID, err)
	}
	return nil
}

// ListCalendars returns all calendars visible to the API key.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	body, err := c.get(ctx, "/module/calendar/calendar/list", nil)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	var parsed struct {
		Response struct {
			Items []Calendar `json:"items"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode calendars: %w", err)
	}
	return parsed.Response.Items, nil
}

// CalendarParams describes a calendar to create.
type CalendarParams struct {
	Name        string
	Description string
	Type        int
	Color       string
	Timezone    string
}

// CreateCalendar creates a calendar and returns its id.
func (c *Client) CreateCalendar(ctx context.Context, params CalendarParams) (int64, error) {
	form := url.Values{
		"name":        {params.Name},
		"description": {params.Description},
		"type":        {fmt.Sprint(params.Type)},
		"color":       {params.Color},
		"timezone":    {params.Timezone},
	}
	body, err := c.postForm(ctx, "/module/calendar/calendar/create", form)
	if err != nil {
		return 0, fmt.Errorf("create calendar %q: %w", params.Name, err)
	}

	id, err := responseID(body)
	if err != nil {
		return 0, fmt.Errorf("create calendar %q: %w", params.Name, err)
	}
	return id.Int64()
}

// EventParams describes a calendar event bound to a CRM project. Dates use
// the API's YYYY-MM-DD HH:MM:SS format.
type EventParams struct {
	Name          string
	Description   string
	CalendarID    int64
	PlanStartDate time.Time
	PlanEndDate   time.Time
	Color         string
	BusyStatus    int
	AccessType    int
	ProjectID     int64
}

const apiTimeLayout = "2006-01-02 15:04:05"

// CreateEvent creates a calendar event and returns the CRM event id.
func (c *Client) CreateEvent(ctx context.Context, params EventParams) (string, error) {
	form := url.Values{
		"name":              {params.Name},
		"description":       {params.Description},
		"type":              {"20"},
		"event_calendar_id": {fmt.Sprint(params.CalendarID)},
		"plan_start_date":   {params.PlanStartDate.Format(apiTimeLayout)},
		"plan_end_date":     {params.PlanEndDate.Format(apiTimeLayout)},
		"event_color":       {params.Color},
		"event_busy_status": {fmt.Sprint(params.BusyStatus)},
		"event_access_type": {fmt.Sprint(params.AccessType)},
		"all_day":           {"0"},
		"module":            {"st"},
		"model":             {"project"},
		"model_id":          {fmt.Sprint(params.ProjectID)},
	}
	body, err := c.postForm(ctx, "/module/task/tasks/create", form)
	if err != nil {
		return "", fmt.Errorf("create event %q: %w", params.Name, err)
	}

	id, err := responseID(body)
	if err != nil {
		return "", fmt.Errorf("create event %q: %w", params.Name, err)
	}
	return id.String(), nil
}

func responseID(body []byte) (json.Number, error) {
	var parsed struct {
		Response struct {
			ID json.Number `json:"id"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response id: %w", err)
	}
	if parsed.Response.ID == "" {
		return "", fmt.Errorf("response carries no id")
	}
	return parsed.Response.ID, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, form)
}

func (c *Client) do(ctx context.Context, method, path string, params, form url.Values) ([]byte, error) {
	query := url.Values{"api_key": {c.apiKey}}
	for key, values := range params {
		query[key] = values
	}
	endpoint := c.baseURL + path + "?" + query.Encode()

	var body []byte
	backoff := retry.WithMaxRetries(c.retries, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if form != nil {
			reader = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
		}

		body = payload
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
