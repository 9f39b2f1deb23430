package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bookings/entity"
)

// APIError is a non-2xx answer of the API. It unwraps to the matching entity error.
type APIError struct {
	StatusCode    int
	Code          string `json:"error"`
	Message       string `json:"message"`
	Unrecoverable bool   `json:"unrecoverable"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

var sentinels = map[string]error{
	"invalid_input":       entity.ErrInvalidInput,
	"not_found":           entity.ErrNotFound,
	"invalid_transition":  entity.ErrInvalidTransition,
	"already_submitted":   entity.ErrAlreadySubmitted,
	"no_active_challenge": entity.ErrNoActiveChallenge,
	"invalid_code":        entity.ErrInvalidCode,
	"dispatch_failure":    entity.ErrDispatchFailure,
}

func (e *APIError) Unwrap() error {
	return sentinels[e.Code]
}

// Booking is a booking as the API returns it, with the actions the viewer may take.
type Booking struct {
	entity.Booking
	AllowedActions []entity.BookingAction `json:"allowed_actions"`
}

type CompletionCode struct {
	Booking     Booking    `json:"booking"`
	ChallengeID string     `json:"challenge_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
}

func (c *Client) List(ctx context.Context) ([]Booking, error) {
	var bookings []Booking
	err := c.do(ctx, http.MethodGet, "/bookings", nil, &bookings)
	return bookings, err
}

func (c *Client) Get(ctx context.Context, bookingID string) (Booking, error) {
	var booking Booking
	err := c.do(ctx, http.MethodGet, bookingPath(bookingID, ""), nil, &booking)
	return booking, err
}

func (c *Client) Book(ctx context.Context, req entity.BookingRequest) (Booking, error) {
	var booking Booking
	err := c.do(ctx, http.MethodPost, "/bookings", req, &booking)
	return booking, err
}

func (c *Client) Accept(ctx context.Context, bookingID string) (Booking, error) {
	return c.transition(ctx, bookingID, "accept")
}

func (c *Client) Decline(ctx context.Context, bookingID string) (Booking, error) {
	return c.transition(ctx, bookingID, "decline")
}

func (c *Client) Cancel(ctx context.Context, bookingID string) (Booking, error) {
	return c.transition(ctx, bookingID, "cancel")
}

func (c *Client) RequestCompletionCode(ctx context.Context, bookingID string) (CompletionCode, error) {
	var resp CompletionCode
	err := c.do(ctx, http.MethodPost, bookingPath(bookingID, "/completion-code"), nil, &resp)
	return resp, err
}

func (c *Client) VerifyCompletionCode(ctx context.Context, bookingID, code string) (Booking, error) {
	var booking Booking
	err := c.do(ctx, http.MethodPost, bookingPath(bookingID, "/completion-code/verify"), map[string]string{"code": code}, &booking)
	return booking, err
}

func (c *Client) SubmitFeedback(ctx context.Context, bookingID, feedback string) (Booking, error) {
	var booking Booking
	err := c.do(ctx, http.MethodPost, bookingPath(bookingID, "/feedback"), map[string]string{"feedback": feedback}, &booking)
	return booking, err
}

func (c *Client) OpsBookings(ctx context.Context, status string) ([]entity.OpsBooking, error) {
	path := "/ops/bookings"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var bookings []entity.OpsBooking
	err := c.do(ctx, http.MethodGet, path, nil, &bookings)
	return bookings, err
}

func (c *Client) transition(ctx context.Context, bookingID, action string) (Booking, error) {
	var booking Booking
	err := c.do(ctx, http.MethodPut, bookingPath(bookingID, "/"+action), nil, &booking)
	return booking, err
}

func bookingPath(bookingID, suffix string) string {
	return "/bookings/" + url.PathEscape(bookingID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Correlation-ID", log.CorrelationIDFromContext(ctx))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not unmarshal response of %s %s: %w", method, path, err)
	}

	return nil
}
