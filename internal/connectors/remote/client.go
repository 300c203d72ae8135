// Package remote is the HTTP/JSON catalog client. It turns transport and
// status-code failures into classified submission outcomes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/twistedatrocity/swgaide/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 30 * time.Second

// Conflict reasons carried by 409 responses.
const (
	ReasonAlreadyExists = "already_exists"
	ReasonWrongClass    = "wrong_class"
	ReasonStale         = "stale"
	ReasonNameCollision = "name_collision"
)

// ErrUnexpectedResponse is returned when a snapshot response cannot be used.
var ErrUnexpectedResponse = errors.New("unexpected catalog response")

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Name returns the client identifier.
func (c *Client) Name() string { return "remote" }

type snapshotResponse struct {
	FetchedAt *time.Time             `json:"fetched_at"`
	Resources []models.CatalogRecord `json:"resources"`
}

// conflictResponse is the body of a 409 answer.
type conflictResponse struct {
	Reason     string   `json:"reason"`
	Message    string   `json:"message"`
	Candidates []string `json:"candidates"`
}

// FetchSnapshot downloads the galaxy's catalog.
func (c *Client) FetchSnapshot(ctx context.Context, galaxy string) (*models.CatalogSnapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/galaxies/"+url.PathEscape(galaxy)+"/resources", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedResponse, resp.Status, strings.TrimSpace(string(body)))
	}
	if ct, ok := jsonContent(resp); !ok {
		return nil, fmt.Errorf("%w: unsupported content-type: %s", ErrUnexpectedResponse, ct)
	}

	var body snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	fetched := c.now()
	if body.FetchedAt != nil {
		fetched = *body.FetchedAt
	}
	return models.NewSnapshot(galaxy, fetched, body.Resources), nil
}

// SubmitNew posts a resource the catalog does not know.
func (c *Client) SubmitNew(ctx context.Context, d *models.ResourceDraft) models.Outcome {
	payload := map[string]interface{}{
		"name":         d.Name,
		"class":        d.Class,
		"availability": d.Availability,
		"force":        d.ForceNew,
	}
	if d.HasStats() {
		payload["stats"] = d.Stats
	}
	return c.submit(ctx, http.MethodPost, "/galaxies/"+url.PathEscape(d.Galaxy)+"/resources", payload)
}

// SubmitEdit records stats on an existing resource.
func (c *Client) SubmitEdit(ctx context.Context, ref *models.CatalogRecord, d *models.ResourceDraft) models.Outcome {
	payload := map[string]interface{}{
		"class": d.Class,
		"stats": d.Stats,
	}
	return c.submit(ctx, http.MethodPut, resourcePath(ref)+"/stats", payload)
}

// SubmitAvailability lists an existing resource on planet.
func (c *Client) SubmitAvailability(ctx context.Context, ref *models.CatalogRecord, planet models.Planet) models.Outcome {
	return c.submit(ctx, http.MethodPost, resourcePath(ref)+"/availability", map[string]interface{}{"planet": planet})
}

// SubmitDepleted flags an existing resource as depleted as of asOf.
func (c *Client) SubmitDepleted(ctx context.Context, ref *models.CatalogRecord, asOf time.Time) models.Outcome {
	return c.submit(ctx, http.MethodPost, resourcePath(ref)+"/depleted", map[string]interface{}{"as_of": asOf.Unix()})
}

func resourcePath(ref *models.CatalogRecord) string {
	return "/resources/" + strconv.FormatInt(ref.ID, 10)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

// submit performs one mutation and classifies the answer.
func (c *Client) submit(ctx context.Context, method, path string, payload interface{}) models.Outcome {
	resp, err := c.do(ctx, method, path, payload)
	if err != nil {
		return models.Failure(models.OutcomeTransientFailure, err.Error())
	}
	defer resp.Body.Close()
	return classify(resp)
}

// classify maps a response to an outcome. A body that is not JSON is a
// transient failure whose detail names the content type.
func classify(resp *http.Response) models.Outcome {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.Failure(models.OutcomeAuthenticationFailure, resp.Status)
	case resp.StatusCode == http.StatusNoContent:
		return models.Success()
	}

	if ct, ok := jsonContent(resp); !ok {
		return models.Failure(models.OutcomeTransientFailure, "unsupported content-type: "+ct)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return models.Success()
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return models.Failure(models.OutcomeStaleRecord, resp.Status)
	case resp.StatusCode == http.StatusConflict:
		return classifyConflict(resp.Body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return models.Failure(models.OutcomeTransientFailure, resp.Status)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Failure(models.OutcomeUnknownFailure, strings.TrimSpace(resp.Status+" "+string(body)))
	}
}

func classifyConflict(r io.Reader) models.Outcome {
	var body conflictResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return models.Failure(models.OutcomeUnknownFailure, "decode conflict: "+err.Error())
	}
	switch body.Reason {
	case ReasonAlreadyExists:
		return models.Outcome{Kind: models.OutcomeAlreadyExists, Detail: body.Message}
	case ReasonWrongClass:
		return models.Failure(models.OutcomeWrongResourceClass, body.Message)
	case ReasonStale:
		return models.Failure(models.OutcomeStaleRecord, body.Message)
	case ReasonNameCollision:
		o := models.Collision(body.Candidates...)
		o.Detail = body.Message
		return o
	default:
		return models.Failure(models.OutcomeUnknownFailure, "conflict: "+body.Reason+" "+body.Message)
	}
}

// jsonContent reports whether resp carries JSON, returning the media type.
// An empty body with no content type counts as JSON.
func jsonContent(resp *http.Response) (string, bool) {
	raw := resp.Header.Get("Content-Type")
	if raw == "" {
		return "", resp.ContentLength == 0
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return raw, false
	}
	return mt, mt == "application/json" || strings.HasSuffix(mt, "+json")
}
