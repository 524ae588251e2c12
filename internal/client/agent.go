// Package client is a Go client for the activity API together with a local state
// container that mirrors what a UI holds between requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/reactivities/internal/api"
	"example.com/reactivities/internal/domain"
)

// Activity is the activity shape served by the API.
type Activity = api.ActivityView

// Profile is the public profile shape served by the API.
type Profile = api.ProfileView

// Page is one page of the activity list.
type Page = api.ListActivitiesResponse

// ListParams selects a page of activities.
type ListParams struct {
	Limit     int
	Offset    int
	Predicate domain.Predicate
}

// Error is a non-2xx API response.
type Error struct {
	Status int
	api.ErrorResponse
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%d): %s", e.Type, e.Status, e.Detail)
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) AgentOption {
	return func(a *Agent) {
		if c != nil {
			a.http = c
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) AgentOption {
	return func(a *Agent) {
		a.token = token
	}
}

// Agent calls the activity API over HTTP.
type Agent struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewAgent builds an Agent for the API rooted at baseURL.
func NewAgent(baseURL string, opts ...AgentOption) *Agent {
	a := &Agent{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ListActivities fetches one page of activities.
func (a *Agent) ListActivities(ctx context.Context, params ListParams) (Page, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	switch params.Predicate.Kind {
	case domain.PredicateStartDate:
		q.Set("startDate", params.Predicate.StartDate.UTC().Format(time.RFC3339))
	case domain.PredicateIsGoing:
		q.Set("isGoing", "true")
	case domain.PredicateIsHost:
		q.Set("isHost", "true")
	}

	path := "/v1/activities"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page Page
	err := a.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

// GetActivity fetches one activity.
func (a *Agent) GetActivity(ctx context.Context, id string) (Activity, error) {
	var activity Activity
	err := a.do(ctx, http.MethodGet, "/v1/activities/"+url.PathEscape(id), nil, &activity)
	return activity, err
}

// CreateActivity creates an activity with the caller-issued ID in cmd.
func (a *Agent) CreateActivity(ctx context.Context, cmd domain.CreateActivityCommand) error {
	return a.do(ctx, http.MethodPost, "/v1/activities", cmd, nil)
}

// EditActivity applies a partial update.
func (a *Agent) EditActivity(ctx context.Context, cmd domain.EditActivityCommand) error {
	return a.do(ctx, http.MethodPut, "/v1/activities/"+url.PathEscape(cmd.ID), cmd, nil)
}

// DeleteActivity removes an activity.
func (a *Agent) DeleteActivity(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/v1/activities/"+url.PathEscape(id), nil, nil)
}

// Attend joins the caller to an activity.
func (a *Agent) Attend(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/v1/activities/"+url.PathEscape(id)+"/attend", nil, nil)
}

// Unattend removes the caller from an activity.
func (a *Agent) Unattend(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/v1/activities/"+url.PathEscape(id)+"/attend", nil, nil)
}

// GetProfile fetches a user's public profile.
func (a *Agent) GetProfile(ctx context.Context, username string) (Profile, error) {
	var profile Profile
	err := a.do(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(username), nil, &profile)
	return profile, err
}

// UpdateProfile edits the caller's profile.
func (a *Agent) UpdateProfile(ctx context.Context, cmd domain.UpdateProfileCommand) error {
	return a.do(ctx, http.MethodPut, "/v1/profiles", cmd, nil)
}

func (a *Agent) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr.ErrorResponse)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
