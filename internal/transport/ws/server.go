package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"tarkovtracker.org/internal/protocol"
	"tarkovtracker.org/internal/tracker/metadata"
)

// Server pushes a VERSION message to subscribers whenever a mode's dataset is
// republished, so clients know when to refetch.
type Server struct {
	stores map[string]*metadata.Store
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(stores map[string]*metadata.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		stores: stores,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		modes := s.handshake(conn)
		if len(modes) == 0 {
			return
		}
		s.log.Printf("ws: %s subscribed to %v", r.RemoteAddr, modes)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 2*len(modes))
		enqueue := func(mode string) {
			b, err := json.Marshal(s.versionMsg(mode))
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		for _, m := range modes {
			m := m
			ch, unsubscribe := s.stores[m].Subscribe()
			defer unsubscribe()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case _, ok := <-ch:
						if !ok {
							return
						}
						enqueue(m)
					}
				}
			}()
		}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// current versions go out only after every subscription is live
		for _, m := range modes {
			enqueue(m)
		}

		// Reader loop: a repeated SUBSCRIBE resends the current versions.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeSubscribe {
				continue
			}
			for _, m := range modes {
				enqueue(m)
			}
		}
	}
}

// handshake waits for SUBSCRIBE and resolves the requested modes. It returns
// nil when the connection should be dropped.
func (s *Server) handshake(conn *websocket.Conn) []string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeSubscribe {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
		return nil
	}
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return nil
	}
	if sub.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	modes := sub.Modes
	if len(modes) == 0 {
		for m := range s.stores {
			modes = append(modes, m)
		}
	}
	slices.Sort(modes)
	modes = slices.Compact(modes)
	for _, m := range modes {
		if _, ok := s.stores[m]; !ok {
			_ = writeJSON(conn, protocol.ErrorMsg{
				Type:            protocol.TypeError,
				ProtocolVersion: protocol.Version,
				Code:            protocol.ErrUnknownMode,
				Message:         fmt.Sprintf("unknown mode %q", m),
			})
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown mode"), time.Now().Add(time.Second))
			return nil
		}
	}

	return modes
}

func (s *Server) versionMsg(mode string) protocol.VersionMsg {
	store := s.stores[mode]
	snap := store.Snapshot()
	msg := protocol.VersionMsg{
		Type:            protocol.TypeVersion,
		ProtocolVersion: protocol.Version,
		Mode:            mode,
		Version:         snap.Version,
		Ready:           store.Ready(),
		Overlay:         snap.Overlay,
	}
	if len(snap.Errors) > 0 {
		msg.Errors = make(map[string]string, len(snap.Errors))
		for d, e := range snap.Errors {
			msg.Errors[string(d)] = e
		}
	}
	return msg
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
