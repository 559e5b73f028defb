// Package observer serves the websocket endpoint render clients and actor
// tooling connect to. One connection gets a bootstrap of world parameters and
// the material palette, then a tick stream of chunk deltas, and may submit
// paint/carve/ignite/explode commands over the same socket.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sandfall/internal/material"
	"sandfall/internal/observerproto"
	"sandfall/internal/sim/grid"
	"sandfall/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *zap.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		reg := s.world.Registry()
		mats := make([]observerproto.MaterialInfo, 0, reg.Count())
		for id := 0; id < reg.Count(); id++ {
			def := reg.Get(material.ID(id))
			mats = append(mats, observerproto.MaterialInfo{
				ID:          uint16(id),
				Name:        def.Name,
				Kind:        def.Kind.String(),
				Color:       def.Color,
				ColorOffset: def.ColorOffset,
				Lighting:    def.Lighting,
			})
		}

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.Tick(),
			TickRateHz:      s.world.TickRateHz(),
			ChunkSize:       grid.ChunkSize,
			Seed:            s.world.Seed(),
			BoundsR:         s.world.BoundsR(),
			Materials:       mats,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 64)

		s.world.Join(world.ObserverJoinRequest{SessionID: sid, Out: out})
		defer s.world.Leave(sid)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: commands until the client goes away.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd observerproto.CommandMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				s.log.Debug("bad command frame", zap.String("session", sid), zap.Error(err))
				continue
			}
			switch cmd.Type {
			case observerproto.TypePaint, observerproto.TypeCarve,
				observerproto.TypeIgnite, observerproto.TypeExplode:
				if !s.world.Enqueue(cmd) {
					s.log.Warn("command queue full, dropped",
						zap.String("session", sid), zap.String("type", cmd.Type))
				}
			case observerproto.TypeSubscribe:
				// Re-subscribe is a no-op; the stream is already flowing.
			default:
				s.log.Debug("unknown command type",
					zap.String("session", sid), zap.String("type", cmd.Type))
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
