package hub

import "time"

type Role string

const (
	RoleHost    Role = "host"
	RoleDisplay Role = "display"
	RolePlayer  Role = "player"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleHost, RoleDisplay, RolePlayer:
		return Role(raw), true
	default:
		return "", false
	}
}

// Client is one attached connection. The transport drains Outbox in its own
// writer goroutine; a closed Outbox means the room detached the client and
// the transport should close the underlying connection.
type Client struct {
	role   Role
	teamID uint
	send   chan []byte

	// guarded by the room mutex
	lastBeat time.Time
	gone     bool
}

func (c *Client) Role() Role            { return c.role }
func (c *Client) TeamID() uint          { return c.teamID }
func (c *Client) Outbox() <-chan []byte { return c.send }
