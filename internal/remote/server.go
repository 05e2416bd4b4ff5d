// Package remote exposes the sequencer to a remote authority: a websocket
// control endpoint feeding playback commands into the sequencer's inlet,
// and a JSON status endpoint.
package remote

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/llehouerou/segue/internal/sequencer"
)

const commandBufferSize = 16

// Message is the wire format for control messages.
type Message struct {
	Type  string `json:"type"`
	Track string `json:"track,omitempty"`
}

// statusResponse is the wire format for /status.
type statusResponse struct {
	State     string  `json:"state"`
	TrackID   int     `json:"trackId,omitempty"`
	TrackName string  `json:"trackName,omitempty"`
	Fading    bool    `json:"fading"`
	Position  float64 `json:"positionSeconds"`
	Duration  float64 `json:"durationSeconds"`
}

// Server accepts remote playback commands over websocket and reports
// sequencer status. Commands flow through the channel returned by
// Commands; bind it to the sequencer with BindRemote.
type Server struct {
	log      *zap.Logger
	seq      *sequencer.Sequencer
	upgrader websocket.Upgrader
	commands chan sequencer.Command
}

// NewServer creates a server for the given sequencer.
func NewServer(seq *sequencer.Sequencer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log: log,
		seq: seq,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The control socket is for a trusted authority; origin
			// enforcement belongs to the deployment in front of it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		commands: make(chan sequencer.Command, commandBufferSize),
	}
}

// Commands returns the inlet channel carrying accepted remote commands.
func (s *Server) Commands() <-chan sequencer.Command {
	return s.commands
}

// Router returns the HTTP routes served by this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws/control", s.handleControl)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return r
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		return
	}
	defer conn.Close()

	s.log.Info("remote authority connected", zap.String("remote", r.RemoteAddr))
	defer s.log.Info("remote authority disconnected", zap.String("remote", r.RemoteAddr))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("control connection error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("ignoring malformed control message",
				zap.ByteString("payload", payload),
				zap.Error(err))
			continue
		}

		switch msg.Type {
		case "ping":
			_ = conn.WriteJSON(Message{Type: "pong"})
		case "play", "pause", "resume", "stop", "skip":
			s.deliver(sequencer.Command{
				Action: sequencer.Action(msg.Type),
				Track:  msg.Track,
			})
		default:
			// Foreign message types are diagnosed and dropped; the
			// connection stays up.
			s.log.Warn("ignoring unknown control message",
				zap.String("type", msg.Type))
		}
	}
}

// deliver hands a command to the inlet without blocking the read loop.
func (s *Server) deliver(cmd sequencer.Command) {
	select {
	case s.commands <- cmd:
	default:
		s.log.Warn("command inlet full, dropping command",
			zap.String("action", string(cmd.Action)),
			zap.String("track", cmd.Track))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.seq.Status()
	resp := statusResponse{
		State:     st.State.String(),
		TrackID:   st.TrackID,
		TrackName: st.TrackName,
		Fading:    st.Fading,
		Position:  st.Position.Seconds(),
		Duration:  st.Duration.Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("writing status response", zap.Error(err))
	}
}

// Dial connects to another segue instance's control endpoint and returns
// the websocket connection. Used by control tooling.
func Dial(url string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	return conn, err
}
