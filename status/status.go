// Package status broadcasts pipeline progress to websocket clients. Each
// run step reports here; the preview ui subscribes and shows a live log.
package status

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Level classifies an event for the ui.
type Level string

const (
	LevelInfo     Level = "info"
	LevelError    Level = "error"
	LevelProgress Level = "progress"
)

// Event is one broadcast message. Stage names the pipeline step reporting
// it (load, place, settle, render, write), empty for untagged lines.
type Event struct {
	Level    Level     `json:"level"`
	Stage    string    `json:"stage,omitempty"`
	Message  string    `json:"message"`
	Progress float64   `json:"progress,omitempty"`
	Time     time.Time `json:"time"`
}

const (
	pingPeriod    = 30 * time.Second
	writeDeadline = 40 * time.Second
	sendBacklog   = 32
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) pump(h *hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// hub fans events out to every attached client. New clients get the last
// event replayed so the ui is never blank.
type hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	last    []byte
	events  chan Event
}

func newHub() *hub {
	h := &hub{
		clients: make(map[*client]bool),
		events:  make(chan Event, 16),
	}
	go h.run()
	return h
}

func (h *hub) run() {
	for ev := range h.events {
		data, err := json.Marshal(&ev)
		if err != nil {
			log.Printf("[status] marshal: %v", err)
			continue
		}
		h.mu.Lock()
		h.last = data
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				// slow client, drop rather than stall the run
			}
		}
		h.mu.Unlock()
	}
}

func (h *hub) attach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
}

func (h *hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

var broadcast = newHub()

// NewClient attaches an upgraded websocket connection to the broadcast.
// The connection is closed when its write pump exits.
func NewClient(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBacklog)}
	go c.pump(broadcast)
	broadcast.attach(c)
}

// Emit stamps and broadcasts the event.
func Emit(ev Event) {
	if math.IsNaN(ev.Progress) || math.IsInf(ev.Progress, 0) {
		ev.Progress = 0
	}
	ev.Time = time.Now()
	broadcast.events <- ev
}

func Info(format string, a ...interface{}) {
	Emit(Event{Level: LevelInfo, Message: fmt.Sprintf(format, a...)})
}

func Error(format string, a ...interface{}) {
	Emit(Event{Level: LevelError, Message: fmt.Sprintf(format, a...)})
}

func Progress(progress float64, format string, a ...interface{}) {
	Emit(Event{Level: LevelProgress, Progress: progress, Message: fmt.Sprintf(format, a...)})
}

// Stagef reports progress of one named pipeline stage.
func Stagef(stage string, progress float64, format string, a ...interface{}) {
	Emit(Event{Level: LevelProgress, Stage: stage, Progress: progress, Message: fmt.Sprintf(format, a...)})
}

// logWriter forwards log package lines as info events so clients see
// everything the console sees.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	if msg := strings.TrimRight(string(p), "\n"); msg != "" {
		Info("%s", msg)
	}
	return len(p), nil
}

func LogWriter() logWriter {
	return logWriter{}
}
