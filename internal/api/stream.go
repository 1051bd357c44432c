// internal/api/stream.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/broadcast"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

const maxClientFrame = 4 * 1024

// statusTryAgainLater tells an evicted client to reconnect.
const statusTryAgainLater ws.StatusCode = 1013

// streamClient pushes one text frame per reading to a websocket peer.
// Client frames are only read to notice close and pongs.
type streamClient struct {
	conn net.Conn
	sub  *broadcast.Subscriber
	opts Options
	log  *zap.Logger
}

func newStreamClient(conn net.Conn, sub *broadcast.Subscriber, opts Options, log *zap.Logger) *streamClient {
	return &streamClient{
		conn: conn,
		sub:  sub,
		opts: opts,
		log:  log.With(zap.Stringer("subscriber", sub.ID()), zap.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *streamClient) Start() {
	c.log.Info("websocket client connected")
	go c.writePump()
	go c.readPump()
}

// readPump unsubscribes when the peer goes away; that ends the
// subscriber and writePump closes the connection.
func (c *streamClient) readPump() {
	defer c.sub.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			return
		}
		if header.Length > maxClientFrame {
			c.log.Warn("client frame too big", zap.Int64("size", header.Length))
			return
		}

		// payload is discarded; it still has to be consumed
		if _, err := io.CopyN(io.Discard, c.conn, header.Length); err != nil {
			return
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Info("websocket client disconnected", zap.NamedError("reason", c.sub.Err()))
	}()

	for {
		select {
		case rd, ok := <-c.sub.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.writeClose(c.sub.Err())
				return
			}
			if err := c.writeReading(rd); err != nil {
				c.sub.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				c.sub.Close()
				return
			}
		}
	}
}

func (c *streamClient) writeReading(rd reading.Reading) error {
	msg, err := json.Marshal(reading.Encode(rd))
	if err != nil {
		return err
	}
	return wsutil.WriteServerText(c.conn, msg)
}

func (c *streamClient) writeClose(reason error) {
	code, text := ws.StatusNormalClosure, ""
	switch {
	case errors.Is(reason, broadcast.ErrEvicted):
		code, text = statusTryAgainLater, "too slow"
		c.log.Warn("closing evicted websocket client")
	case errors.Is(reason, broadcast.ErrClosed):
		code, text = ws.StatusGoingAway, "server shutting down"
	}
	_ = ws.WriteFrame(c.conn, ws.NewCloseFrame(ws.NewCloseFrameBody(code, text)))
}
