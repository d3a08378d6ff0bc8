package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"yogiworld.io/internal/persistence/indexdb"
	"yogiworld.io/internal/protocol"
	"yogiworld.io/internal/sim/world"
)

type routes struct {
	world  *world.World
	index  *indexdb.SQLiteIndex
	logger *log.Logger
}

func (rt routes) register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", rt.metrics)
	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", rt.adminState)
	mux.HandleFunc("/admin/v1/rewards", rt.adminRewards)
}

func (rt routes) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	m := rt.world.Metrics()
	tick := rt.world.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP yogiworld_tick Snapshot ticks broadcast so far.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_tick counter\n")
	fmt.Fprintf(rw, "yogiworld_tick %d\n", tick)

	fmt.Fprintf(rw, "# HELP yogiworld_participants Connected participants.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_participants gauge\n")
	fmt.Fprintf(rw, "yogiworld_participants %d\n", m.Participants)

	fmt.Fprintf(rw, "# HELP yogiworld_snapshots_sent_total Snapshot frames queued to clients.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_snapshots_sent_total counter\n")
	fmt.Fprintf(rw, "yogiworld_snapshots_sent_total %d\n", m.SnapshotsSent)

	fmt.Fprintf(rw, "# HELP yogiworld_sends_skipped_total Messages skipped because a client queue was full.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_sends_skipped_total counter\n")
	fmt.Fprintf(rw, "yogiworld_sends_skipped_total %d\n", m.SendsSkipped)

	fmt.Fprintf(rw, "# HELP yogiworld_accepted_total Accepted client requests by kind.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_accepted_total counter\n")
	fmt.Fprintf(rw, "yogiworld_accepted_total{kind=%q} %d\n", "chat", m.ChatAccepted)
	fmt.Fprintf(rw, "yogiworld_accepted_total{kind=%q} %d\n", "action", m.ActionsAccepted)
	fmt.Fprintf(rw, "yogiworld_accepted_total{kind=%q} %d\n", "claim", m.ClaimsGranted)

	fmt.Fprintf(rw, "# HELP yogiworld_claims_rejected_total Zone claims that did not credit.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_claims_rejected_total counter\n")
	fmt.Fprintf(rw, "yogiworld_claims_rejected_total %d\n", m.ClaimsRejected)

	fmt.Fprintf(rw, "# HELP yogiworld_dropped_total Dropped client input by reason.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_dropped_total counter\n")
	for _, reason := range protocol.DropReasons {
		fmt.Fprintf(rw, "yogiworld_dropped_total{reason=%q} %d\n", reason, m.Drops[reason])
	}

	fmt.Fprintf(rw, "# HELP yogiworld_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_queue_depth gauge\n")
	fmt.Fprintf(rw, "yogiworld_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "yogiworld_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "yogiworld_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)
	fmt.Fprintf(rw, "yogiworld_queue_depth{queue=%q} %d\n", "attach", m.QueueDepths.Attach)

	fmt.Fprintf(rw, "# HELP yogiworld_step_ms Last snapshot step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE yogiworld_step_ms gauge\n")
	fmt.Fprintf(rw, "yogiworld_step_ms %.3f\n", m.StepMS)

	if rt.index != nil {
		st := rt.index.Stats()
		fmt.Fprintf(rw, "# HELP yogiworld_index_queue_depth Reward index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE yogiworld_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "yogiworld_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(rw, "# HELP yogiworld_index_dropped_total Journal entries the index dropped.\n")
		fmt.Fprintf(rw, "# TYPE yogiworld_index_dropped_total counter\n")
		fmt.Fprintf(rw, "yogiworld_index_dropped_total %d\n", st.DroppedTotal)
	}
}

func (rt routes) adminState(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	st, err := rt.world.AdminState(ctx)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	resp := struct {
		State   world.StateView    `json:"state"`
		Metrics world.WorldMetrics `json:"metrics"`
	}{
		State:   st,
		Metrics: rt.world.Metrics(),
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

func (rt routes) adminRewards(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	if rt.index == nil {
		http.Error(rw, "index disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	top, err := rt.index.TopEarners(r.Context(), limit)
	if err != nil {
		rt.logger.Printf("admin rewards: %v", err)
		http.Error(rw, "query failed", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []indexdb.Earner{}
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{"earners": top})
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
