package ws

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/world"
)

const (
	outQueue      = 64
	maxFrameBytes = 16 * 1024
	readTimeout   = 60 * time.Second
	writeTimeout  = 5 * time.Second

	// Per-IP limiters idle this long with a full bucket are forgotten; a new
	// one would behave identically.
	limiterIdle  = 10 * time.Minute
	limiterSweep = time.Minute
)

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	tracer   trace.Tracer

	mu         sync.Mutex
	ipLimiters map[string]*ipLimiter
	lastSweep  time.Time
	upgradeRPS rate.Limit
	upgradeBst int
	now        func() time.Time
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		tracer:     otel.Tracer("yogiworld.io/internal/transport/ws"),
		ipLimiters: map[string]*ipLimiter{},
		upgradeRPS: 2,
		upgradeBst: 5,
		now:        time.Now,
	}
}

// SetUpgradeLimit overrides the per-IP connection rate.
func (s *Server) SetUpgradeLimit(perSecond rate.Limit, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upgradeRPS = perSecond
	s.upgradeBst = burst
	s.ipLimiters = map[string]*ipLimiter{}
}

// allowUpgrade takes one token from ip's limiter.
func (s *Server) allowUpgrade(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweep {
		s.sweepLocked(now)
	}
	l, ok := s.ipLimiters[ip]
	if !ok {
		l = &ipLimiter{lim: rate.NewLimiter(s.upgradeRPS, s.upgradeBst)}
		s.ipLimiters[ip] = l
	}
	l.lastSeen = now
	return l.lim.AllowN(now, 1)
}

func (s *Server) sweepLocked(now time.Time) {
	s.lastSweep = now
	for ip, l := range s.ipLimiters {
		if now.Sub(l.lastSeen) < limiterIdle {
			continue
		}
		if l.lim.TokensAt(now) < float64(s.upgradeBst) {
			continue
		}
		delete(s.ipLimiters, ip)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.allowUpgrade(ip) {
			s.log.Printf("upgrade rate limited ip=%s", ip)
			http.Error(rw, "too many connections", http.StatusTooManyRequests)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxFrameBytes)

		id := uuid.NewString()
		_, span := s.tracer.Start(r.Context(), "ws.session", trace.WithAttributes(
			attribute.String("participant.id", id),
			attribute.String("client.address", ip),
		))
		defer span.End()

		out := make(chan []byte, outQueue)
		resp := make(chan world.JoinResponse, 1)
		s.world.Join() <- world.JoinRequest{ID: id, Out: out, Resp: resp}
		if jr := <-resp; !jr.OK {
			span.SetAttributes(attribute.Bool("join.ok", false))
			s.log.Printf("join refused id=%s", id)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "join refused"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop.
		frames := 0
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			frames++
			cm, err := protocol.DecodeClient(msg)
			if err != nil {
				s.world.CountDrop(protocol.DropMalformed)
				continue
			}
			if _, ok := cm.(protocol.Unrecognized); ok {
				s.world.CountDrop(protocol.DropUnrecognized)
				continue
			}
			s.world.Inbox() <- world.Envelope{ID: id, Msg: cm}
		}

		// Cleanup.
		s.world.Leave() <- id
		span.SetAttributes(attribute.Int("session.frames", frames))
	}
}
