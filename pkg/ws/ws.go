// Package ws wraps a gorilla websocket connection in typed inbox and outbox
// channels so callers exchange JSON frames without touching the wire API.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const (
	// pingInterval is how often protocol-level pings go out.
	pingInterval = 15 * time.Second
	// pongWait bounds how long we wait for a pong before the read side fails.
	pongWait = time.Minute
	// closeWait bounds the close handshake.
	closeWait = 5 * time.Second
	// inboxBufferSize is the number of inbound frames buffered before backpressure.
	inboxBufferSize = 32
	// outboxBufferSize is the number of outbound frames buffered before backpressure.
	outboxBufferSize = 64
	// maxFrameSize bounds a single frame; chat payloads with embedded record
	// snapshots can get large but should never approach this.
	maxFrameSize = 16 * 1024 * 1024
)

// Websocket is a channel-based, thread-safe JSON frame exchange over a
// *websocket.Conn. Inbound frames decode into TIn, outbound frames encode
// from TOut.
type Websocket[TIn, TOut any] struct {
	log  *logrus.Entry
	conn *websocket.Conn

	cancel    context.CancelFunc
	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	closeErr  error

	// Done closes when both loops have exited. Callers should still Close.
	Done <-chan struct{}
	// Inbox delivers decoded inbound frames. It closes when the read loop exits.
	Inbox <-chan TIn
	// Outbox accepts frames to encode and write.
	Outbox chan<- TOut
}

// Wrap takes ownership of conn and returns the typed wrapper around it.
func Wrap[TIn, TOut any](name string, conn *websocket.Conn) *Websocket[TIn, TOut] {
	ctx, cancel := context.WithCancel(context.Background())

	inbox := make(chan TIn, inboxBufferSize)
	outbox := make(chan TOut, outboxBufferSize)
	done := make(chan struct{})

	w := &Websocket[TIn, TOut]{
		log: logrus.WithFields(logrus.Fields{
			"component":   "websocket",
			"remote-addr": conn.RemoteAddr(),
			"name":        name,
		}),
		conn:   conn,
		cancel: cancel,
		Done:   done,
		Inbox:  inbox,
		Outbox: outbox,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := w.writeLoop(ctx, outbox); err != nil {
			w.recordErr(fmt.Errorf("write loop: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := w.readLoop(ctx, inbox); err != nil {
			w.recordErr(fmt.Errorf("read loop: %w", err))
		}
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	return w
}

// Wait blocks until the socket is finished and returns its terminal error, if any.
func (w *Websocket[TIn, TOut]) Wait() error {
	<-w.Done
	return w.Error()
}

// Error returns any error the loops have hit. Errors from closing are excluded.
func (w *Websocket[TIn, TOut]) Error() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close runs the close handshake and closes the underlying connection. The
// socket is unusable afterwards. Safe to call more than once.
func (w *Websocket[TIn, TOut]) Close() error {
	w.closeOnce.Do(func() {
		priorErr := w.Error()

		var errs *multierror.Error
		w.log.Trace("attempting graceful close")
		if gErr := w.closeGraceful(); gErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("gracefully closing: %w", gErr))
			w.log.Trace("attempting forceful close")
			if fErr := w.closeForced(); fErr != nil {
				errs = multierror.Append(errs, fmt.Errorf("forcibly closing: %w", fErr))
			}
		}
		w.log.Trace("socket closed")

		// Surface a loop error that appeared during the handshake.
		if loopErr := w.Error(); priorErr == nil && loopErr != nil {
			errs = multierror.Append(errs, loopErr)
		}
		w.closeErr = errs.ErrorOrNil()
	})
	return w.closeErr
}

func (w *Websocket[TIn, TOut]) readLoop(ctx context.Context, inbox chan<- TIn) error {
	w.log.Trace("socket read loop started")
	defer w.cancel()
	defer close(inbox)

	w.conn.SetReadLimit(maxFrameSize)
	if err := w.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return fmt.Errorf("setting initial read deadline: %w", err)
	}
	w.conn.SetPongHandler(func(string) error {
		if err := w.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			w.log.WithError(err).Error("extending read deadline")
		}
		return nil
	})

	for {
		msgType, raw, err := w.conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			return fmt.Errorf("unexpected message type: %d", msgType)
		}
		if ctx.Err() != nil {
			// Closing. Drain frames until the peer's close arrives.
			continue
		}

		var frame TIn
		if err := json.Unmarshal(raw, &frame); err != nil {
			return fmt.Errorf("unmarshalling frame: %w", err)
		}
		inbox <- frame
	}
}

func (w *Websocket[TIn, TOut]) writeLoop(ctx context.Context, outbox <-chan TOut) error {
	w.log.Trace("socket write loop started")
	defer w.cancel()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case frame := <-outbox:
			if err := w.writeFrame(frame); err == websocket.ErrCloseSent {
				return nil
			} else if err != nil {
				return err
			}
		case <-ping.C:
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongWait))
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if err == websocket.ErrCloseSent {
				return nil
			}
			if err != nil {
				return fmt.Errorf("sending ping: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Websocket[TIn, TOut]) writeFrame(frame TOut) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(frame); err != nil {
		return fmt.Errorf("encoding outbound frame: %w", err)
	}
	if buf.Len() > maxFrameSize {
		return fmt.Errorf("frame size %d exceeds maximum size %d", buf.Len(), maxFrameSize)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, buf.Bytes()); err != nil {
		if err == websocket.ErrCloseSent {
			return err
		}
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

func (w *Websocket[TIn, TOut]) closeGraceful() error {
	w.cancel()

	deadline := time.Now().Add(closeWait)
	w.conn.SetPongHandler(nil) // So a late pong doesn't extend the deadline.
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("setting read deadline: %w", err)
	}

	// If this close begins the handshake, the read loop drains frames until the
	// peer's close arrives or the deadline passes. If the handshake already ran,
	// the write returns ErrCloseSent and the read loop has already exited.
	err := w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "close called"),
		deadline,
	)
	if err != nil && err != websocket.ErrCloseSent {
		return fmt.Errorf("sending close: %w", err)
	}

	<-w.Done
	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("closing underlying conn: %w", err)
	}
	return nil
}

func (w *Websocket[TIn, TOut]) closeForced() error {
	w.cancel()
	err := w.conn.Close()
	<-w.Done
	if err != nil {
		return fmt.Errorf("closing underlying conn: %w", err)
	}
	return nil
}

func (w *Websocket[TIn, TOut]) recordErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = multierror.Append(w.err, err)
}
