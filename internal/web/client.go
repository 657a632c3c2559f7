package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hpungsan/tubestreak/internal/errors"
)

// Client talks to a running host's endpoint over its unix socket.
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient returns a client for the endpoint at socketPath.
func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Forward hands address to the running host. It returns HOST_UNAVAILABLE
// when nothing is listening on the socket.
func (c *Client) Forward(ctx context.Context, address string) error {
	body, err := json.Marshal(OpenRequest{Address: address})
	if err != nil {
		return errors.NewInternal(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://host/open", bytes.NewReader(body))
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewHostUnavailable(c.socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return decodeError(resp)
	}
	return nil
}

// Status fetches the running host's delivery state.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://host/status", nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewHostUnavailable(c.socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("invalid status response: %w", err))
	}
	return &out, nil
}

// decodeError turns an error response back into a ShareError.
func decodeError(resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return errors.NewInternal(fmt.Errorf("unexpected response status %d", resp.StatusCode))
	}
	return &errors.ShareError{
		Code:    body.Error.Code,
		Status:  body.Error.Status,
		Message: body.Error.Message,
	}
}
