package main

import (
	"net/http"
	"slices"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/session"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	followWriteWait    = 10 * time.Second
	followPongWait     = 60 * time.Second
	followPingInterval = 30 * time.Second
	followMaxMessage   = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts non-browser clients and the configured CORS origins
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(conf.Server.AllowedOrigins, "*") || slices.Contains(conf.Server.AllowedOrigins, origin)
}

// followPosition is sent by the remote whenever its playback position moves
type followPosition struct {
	TimeMs int `json:"t"`
}

// followUpdate is pushed back when the displayed lines change
type followUpdate struct {
	session.Display
	Error string `json:"error,omitempty"`
}

// followSession streams the display state of a session over a websocket.
// The client reports positions; an update is written only when the
// resolved display differs from the last one sent.
func followSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("%s WebSocket upgrade failed for session %s: %v", logcolors.LogSession, sess.ID(), err)
		return
	}
	defer conn.Close()

	log.Infof("%s Remote following session %s", logcolors.LogSession, sess.ID())

	positions := make(chan int)
	quit := make(chan struct{})
	defer close(quit)
	readerDone := make(chan struct{})

	conn.SetReadLimit(followMaxMessage)
	conn.SetReadDeadline(time.Now().Add(followPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(followPongWait))
	})

	go func() {
		defer close(readerDone)
		for {
			var msg followPosition
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(followPongWait))
			select {
			case positions <- msg.TimeMs:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(followPingInterval)
	defer ticker.Stop()

	var last *followUpdate
	for {
		select {
		case <-readerDone:
			log.Debugf("%s Remote stopped following session %s", logcolors.LogSession, sess.ID())
			return

		case t := <-positions:
			update := followUpdate{}
			if display, err := sess.Position(t); err != nil {
				update.Error = err.Error()
			} else {
				update.Display = display
			}
			if last != nil && *last == update {
				continue
			}
			last = &update

			conn.SetWriteDeadline(time.Now().Add(followWriteWait))
			if err := conn.WriteJSON(update); err != nil {
				log.Debugf("%s Failed to write to follower of %s: %v", logcolors.LogSession, sess.ID(), err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(followWriteWait)); err != nil {
				return
			}
		}
	}
}
