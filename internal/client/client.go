// Package client provides a Go client for the episode websocket feed. It
// reconnects with a fixed delay when the connection drops and keeps the
// session alive with periodic heartbeats.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by send methods while the client is between
// connections or has given up reconnecting.
var ErrNotConnected = errors.New("client: not connected")

// ErrGaveUp is reported on the Events channel close after the reconnect
// budget is exhausted.
var ErrGaveUp = errors.New("client: max reconnect attempts reached")

// Event is a decoded server message. Every message carries a "type" key.
type Event map[string]any

// Type returns the event's message type, or "" if missing.
func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

// Options tune the reconnect and heartbeat behaviour.
type Options struct {
	// MaxReconnectAttempts bounds consecutive failed reconnects before the
	// client gives up. A successful connection resets the counter.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration
	// HeartbeatInterval is how often a heartbeat message is sent.
	HeartbeatInterval time.Duration
}

func (o *Options) defaults() {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 3 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
}

// Client is a single-episode websocket session. Events arrive on Events()
// until the session is closed or reconnecting gives up; Err() reports why
// the channel closed.
type Client struct {
	wsURL string
	opts  Options

	mu   sync.Mutex
	conn *websocket.Conn

	events chan Event
	done   chan struct{}
	once   sync.Once

	errMu sync.Mutex
	err   error
}

// Dial connects to the hub at baseURL (e.g. "ws://localhost:8080") and joins
// the given episode with the given role. teamName is required for players
// and ignored otherwise.
func Dial(ctx context.Context, baseURL string, episodeID uint, role, teamName string, opts Options) (*Client, error) {
	opts.defaults()

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u.Path = fmt.Sprintf("/ws/episodes/%d", episodeID)
	q := u.Query()
	q.Set("role", role)
	if teamName != "" {
		q.Set("team_name", teamName)
	}
	u.RawQuery = q.Encode()

	c := &Client{
		wsURL:  u.String(),
		opts:   opts,
		events: make(chan Event, 32),
		done:   make(chan struct{}),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.wsURL, err)
	}
	c.setConn(conn)

	go c.readLoop(conn)
	go c.heartbeatLoop()
	return c, nil
}

// Events returns the channel of decoded server messages. The channel is
// closed when the client shuts down; check Err afterwards.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the session ends for any reason.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the session ended. It returns nil after a clean Close and
// ErrGaveUp after the reconnect budget ran out.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close shuts the session down without reconnecting.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) shutdown(reason error) {
	c.once.Do(func() {
		c.errMu.Lock()
		c.err = reason
		c.errMu.Unlock()

		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		close(c.done)
		close(c.events)
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.reconnect()
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		select {
		case c.events <- evt:
		case <-c.done:
			return
		}
	}
}

// reconnect redials with a fixed delay between attempts. A successful
// connection hands off to a fresh read loop; exhausting the budget ends the
// session with ErrGaveUp.
func (c *Client) reconnect() {
	c.setConn(nil)

	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.opts.ReconnectDelay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
		if err != nil {
			continue
		}
		c.setConn(conn)
		go c.readLoop(conn)
		return
	}

	c.shutdown(ErrGaveUp)
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// Best effort; a dead connection is handled by the read loop.
			_ = c.send(map[string]any{"type": "heartbeat"})
		}
	}
}

func (c *Client) send(msg map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ShowQuestion asks the hub to put a question up (host only).
func (c *Client) ShowQuestion(questionID uint) error {
	return c.send(map[string]any{"type": "show_question", "question_id": questionID})
}

// RevealAnswer toggles the answer reveal for the current question (host only).
func (c *Client) RevealAnswer(revealed bool) error {
	return c.send(map[string]any{"type": "reveal_answer", "revealed": revealed})
}

// ClearQuestion removes the current question from the displays (host only).
func (c *Client) ClearQuestion() error {
	return c.send(map[string]any{"type": "clear_question"})
}

// AwardPoints credits a team with the current question's configured points
// (host only).
func (c *Client) AwardPoints(teamID, questionID uint) error {
	return c.send(map[string]any{"type": "award_points", "team_id": teamID, "question_id": questionID})
}

// UpdateScore adjusts a team's score. action is "add", "subtract" or "set".
func (c *Client) UpdateScore(teamID uint, points int, action string) error {
	return c.send(map[string]any{"type": "update_score", "team_id": teamID, "points": points, "action": action})
}

// CalculateRankings recomputes and persists the scoreboard positions
// (host only).
func (c *Client) CalculateRankings() error {
	return c.send(map[string]any{"type": "calculate_rankings"})
}

// UpdateEpisodeStatus transitions the episode's lifecycle status (host only).
func (c *Client) UpdateEpisodeStatus(status string) error {
	return c.send(map[string]any{"type": "episode_status", "status": status})
}

// RequestSync asks for a fresh full state snapshot.
func (c *Client) RequestSync() error {
	return c.send(map[string]any{"type": "sync_request"})
}

// SubmitBuzz records the player's answer for a question (player only).
func (c *Client) SubmitBuzz(questionID uint, answer any) error {
	return c.send(map[string]any{"type": "buzz_answer", "question_id": questionID, "answer": answer})
}
