package main

import (
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"yogiworld.io/internal/client/reconcile"
	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/geofence"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:3000/v1/ws", "ws url")
		name    = flag.String("name", "bot", "display name")
		rank    = flag.String("rank", "", "rank to request (optional)")
		wallet  = flag.String("wallet", "", "wallet for inventory lookup (optional)")
		turn    = flag.Float64("turn", 0.6, "turn rate in radians per second")
		chatSec = flag.Duration("chat_every", 20*time.Second, "chat interval (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.ProfileUpdateMsg{
		Type:   protocol.TypeProfileUpdate,
		Name:   *name,
		Rank:   *rank,
		Wallet: *wallet,
	}); err != nil {
		logger.Fatalf("send profile-update: %v", err)
	}

	frames := make(chan []byte, 64)
	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- msg
		}
	}()

	rec := reconcile.New()
	rec.OnNameTag = func(id, name string) { logger.Printf("name tag %s=%q", id, name) }
	rec.OnLeave = func(id string) { logger.Printf("left %s", id) }

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	const frameDT = time.Second / 60
	ticker := time.NewTicker(frameDT)
	defer ticker.Stop()
	lastChat := time.Now()
	claimed := map[string]bool{}
	lastPoints := 0

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-frames:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			if err := rec.Apply(msg); err != nil {
				logger.Printf("apply: %v", err)
			}
			if rec.Points != lastPoints {
				logger.Printf("points=%d", rec.Points)
				lastPoints = rec.Points
			}
		case <-ticker.C:
			local := rec.Local()
			if local.ID == "" {
				continue
			}
			local.Turn(*turn * frameDT.Seconds())
			local.Move(1, 0, false, frameDT)
			rec.Frame()
			if local.Due(frameDT) {
				_ = conn.WriteJSON(local.State())
			}
			for _, z := range rec.Zones {
				gz := geofence.Zone{Name: z.Name, X: z.X, Z: z.Z, R: z.R}
				if !claimed[z.Name] && gz.Contains(local.Pos.X(), local.Pos.Z(), 0) {
					claimed[z.Name] = true
					_ = conn.WriteJSON(protocol.ZoneClaimMsg{Type: protocol.TypeZoneClaim, Zone: z.Name})
				}
			}
			if *chatSec > 0 && time.Since(lastChat) >= *chatSec {
				lastChat = time.Now()
				_ = conn.WriteJSON(protocol.ChatSendMsg{Type: protocol.TypeChatSend, Text: "hello from " + *name})
				if nearest(rec) < 3 {
					_ = conn.WriteJSON(protocol.ActionPlayMsg{Type: protocol.TypeActionPlay, Action: string(protocol.GreetingAction)})
				}
			}
		}
	}
}

func nearest(rec *reconcile.Reconciler) float64 {
	best := math.Inf(1)
	me := rec.Local().Pos
	for _, rm := range rec.Remotes() {
		if d := rm.Pos.Sub(me).Len(); d < best {
			best = d
		}
	}
	return best
}
