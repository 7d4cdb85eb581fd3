package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"

	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

// Conn is the follower side of a peer connection.
type Conn struct {
	c *websocket.Conn
}

// Dial connects to the room code on the server at baseURL (http, https, ws or
// wss). Unknown rooms fail with tournament.ErrNotFound, everything else with
// tournament.ErrConnection.
func Dial(ctx context.Context, baseURL, code string) (*Conn, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: room code is required", tournament.ErrValidation)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad server url %q: %v", tournament.ErrValidation, baseURL, err)
	}
	u = u.JoinPath("ws")
	u.RawQuery = url.Values{"code": {code}}.Encode()

	c, resp, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: room %s", tournament.ErrNotFound, code)
		}
		return nil, fmt.Errorf("%w: dialing %s: %v", tournament.ErrConnection, u.Redacted(), err)
	}
	c.SetReadLimit(readLimit)
	return &Conn{c: c}, nil
}

func (c *Conn) Send(ctx context.Context, m protocol.Message) error {
	payload, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	if err := c.c.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("%w: sending %s: %v", tournament.ErrConnection, m.Kind(), err)
	}
	return nil
}

// Receive blocks for the next frame. Frames that do not decode are skipped;
// a lost connection is reported as tournament.ErrConnection.
func (c *Conn) Receive(ctx context.Context) (protocol.Message, error) {
	for {
		_, data, err := c.c.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", tournament.ErrConnection, err)
		}
		m, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		return m, nil
	}
}

func (c *Conn) Close() error {
	return c.c.Close(websocket.StatusNormalClosure, "bye")
}
