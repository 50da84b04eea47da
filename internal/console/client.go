// Package console implements the optional SSH operator console: a
// terminal UI that talks to the swarm manager's REST surface rather
// than reaching into its internals. The REST hijack family remains the
// canonical contract; this package is one more client of it.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/swarm"
)

// Client is a thin wrapper over the swarm manager's REST API.
type Client struct {
	baseURL string
	owner   string
	http    *http.Client
}

// NewClient builds a Client against a swarm manager listening at
// baseURL (e.g. "http://127.0.0.1:8070"), authenticating hijack calls
// as owner.
func NewClient(baseURL, owner string) *Client {
	return &Client{
		baseURL: baseURL,
		owner:   owner,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("console: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("console: %s %s: %s", req.Method, req.URL.Path, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Status lists every bot the swarm manager currently tracks.
func (c *Client) Status(ctx context.Context) ([]swarm.BotStatus, error) {
	var out []swarm.BotStatus
	err := c.get(ctx, "/swarm/status", &out)
	return out, err
}

// TimeSeries fetches the rolling performance summary for one bot.
func (c *Client) TimeSeries(ctx context.Context, botID string, windowMinutes int) (swarm.TimeSeriesSummary, error) {
	var out swarm.TimeSeriesSummary
	q := url.Values{"bot_id": {botID}}
	if windowMinutes > 0 {
		q.Set("window_minutes", fmt.Sprintf("%d", windowMinutes))
	}
	err := c.get(ctx, "/swarm/timeseries/summary?"+q.Encode(), &out)
	return out, err
}

// HijackBegin requests a hijack lease on botID.
func (c *Client) HijackBegin(ctx context.Context, botID string, leaseSecs int) (swarm.HijackLease, error) {
	var out swarm.HijackLease
	body := map[string]any{"owner": c.owner, "lease_s": leaseSecs}
	err := c.post(ctx, "/bots/"+botID+"/hijack/begin", body, &out)
	return out, err
}

// HijackHeartbeat extends an in-progress hijack lease.
func (c *Client) HijackHeartbeat(ctx context.Context, botID string, leaseSecs int) (swarm.HijackLease, error) {
	var out swarm.HijackLease
	body := map[string]any{"owner": c.owner, "lease_s": leaseSecs}
	err := c.post(ctx, "/bots/"+botID+"/hijack/heartbeat", body, &out)
	return out, err
}

// HijackRelease gives up a hijack lease early.
func (c *Client) HijackRelease(ctx context.Context, botID string) error {
	return c.post(ctx, "/bots/"+botID+"/hijack/release?owner="+url.QueryEscape(c.owner), nil, nil)
}

// HijackRead pulls a fresh status snapshot and the bot's live screen
// while holding a lease.
func (c *Client) HijackRead(ctx context.Context, botID string) (swarm.HijackReadResult, error) {
	var out swarm.HijackReadResult
	err := c.post(ctx, "/bots/"+botID+"/hijack/read?owner="+url.QueryEscape(c.owner), nil, &out)
	return out, err
}

// HijackSend forwards a line of operator input to a hijacked bot.
func (c *Client) HijackSend(ctx context.Context, botID, input string) error {
	body := map[string]any{"owner": c.owner, "input": input}
	return c.post(ctx, "/bots/"+botID+"/hijack/send", body, nil)
}
