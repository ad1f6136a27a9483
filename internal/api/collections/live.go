package collections

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collections/internal/metrics"
	"collections/internal/services/browser"
	"collections/pkg/logger"
)

const (
	liveWriteWait  = 5 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveMaxMessage = 4096
	liveSendBuffer = 64
)

// HandleLive upgrades to a WebSocket and runs a live filter session until
// the tab goes away.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("Live upgrade failed", "error", err)
		return
	}

	lc := newLiveConn(conn, h.log)
	sess, err := h.svc.NewSession(r.Context(), state(r), h.locale(r), lc.send)
	if err != nil {
		h.log.ErrorWithContext(r.Context(), err, map[string]string{"path": r.URL.Path})
		lc.close(websocket.CloseInternalServerErr)
		return
	}
	log := h.log.With("session_id", sess.ID())
	log.Debugw("Live session connected", "remote", r.RemoteAddr)

	sess.Start()
	h.readLoop(lc, sess, log)

	sess.Close()
	lc.close(websocket.CloseNormalClosure)
	log.Debugw("Live session disconnected")
}

func (h *Handler) readLoop(lc *liveConn, sess *browser.Session, log *logger.Logger) {
	conn := lc.conn
	conn.SetReadLimit(liveMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		var in browser.Inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugw("Live read failed", "error", err)
			}
			return
		}
		metrics.LiveMessages.WithLabelValues(messageLabel(in.Type), "in").Inc()

		if err := sess.Handle(in); err != nil {
			if StatusFor(err) >= http.StatusInternalServerError {
				log.ErrorWithContext(sess.Context(), err, map[string]string{"message": in.Type})
			}
			lc.send(browser.Outbound{Type: browser.MsgError, Key: in.Key, Error: err.Error()})
		}
	}
}

// liveConn serializes writes: gorilla connections allow one writer at a time
// while searchers push from their own goroutines.
type liveConn struct {
	conn    *websocket.Conn
	out     chan browser.Outbound
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	log     *logger.Logger
}

func newLiveConn(conn *websocket.Conn, log *logger.Logger) *liveConn {
	lc := &liveConn{
		conn:    conn,
		out:     make(chan browser.Outbound, liveSendBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		log:     log,
	}
	go lc.writeLoop()
	return lc
}

// send queues msg, blocking while the buffer is full. It gives up once the
// connection is closing or the writer has stopped.
func (lc *liveConn) send(msg browser.Outbound) {
	select {
	case lc.out <- msg:
	case <-lc.done:
	case <-lc.stopped:
	}
}

func (lc *liveConn) writeLoop() {
	defer close(lc.stopped)
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-lc.done:
			return
		case msg := <-lc.out:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := lc.conn.WriteJSON(msg); err != nil {
				lc.log.Debugw("Live write failed", "error", err)
				_ = lc.conn.Close()
				return
			}
			metrics.LiveMessages.WithLabelValues(msg.Type, "out").Inc()
		case <-ticker.C:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := lc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = lc.conn.Close()
				return
			}
		}
	}
}

// close flushes queued messages, says goodbye and drops the connection.
func (lc *liveConn) close(code int) {
	lc.once.Do(func() {
		lc.drain()
		close(lc.done)
		<-lc.stopped
		_ = lc.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second),
		)
		_ = lc.conn.Close()
	})
}

// drain waits briefly for the writer to empty the queue
func (lc *liveConn) drain() {
	deadline := time.Now().Add(liveWriteWait)
	for len(lc.out) > 0 && time.Now().Before(deadline) {
		select {
		case <-lc.stopped:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// messageLabel bounds the metric label to known message types
func messageLabel(t string) string {
	switch t {
	case browser.MsgSearch, browser.MsgMore, browser.MsgOpen, browser.MsgRender,
		browser.MsgChange, browser.MsgClear, browser.MsgPage, browser.MsgSync:
		return t
	}
	return "unknown"
}
