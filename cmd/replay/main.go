package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	persistlog "yogiworld.io/internal/persistence/log"
	"yogiworld.io/internal/sim/world"
)

type totals struct {
	Name     string
	Points   int
	Rewards  int
	Chats    int
	Sessions int
	Zones    map[string]bool
}

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		dir     = flag.String("journal", "", "journal dir containing journal-*.jsonl.zst (default: <data>/journal)")
		since   = flag.String("since", "", "only count entries at or after this RFC3339 time (optional)")
	)
	flag.Parse()

	jdir := *dir
	if jdir == "" {
		jdir = persistlog.JournalDir(*dataDir)
	}
	var from time.Time
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		from = t
	}

	files, err := persistlog.JournalFiles(jdir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files in", jdir)
		os.Exit(1)
	}

	byID := map[string]*totals{}
	get := func(id string) *totals {
		t := byID[id]
		if t == nil {
			t = &totals{Zones: map[string]bool{}}
			byID[id] = t
		}
		return t
	}
	entries := 0
	for _, f := range files {
		err := persistlog.ReadJournal(f, func(e world.JournalEntry) error {
			if !from.IsZero() && e.Time.Before(from) {
				return nil
			}
			entries++
			t := get(e.ParticipantID)
			if e.Name != "" {
				t.Name = e.Name
			}
			switch e.Kind {
			case world.EntryJoin:
				t.Sessions++
			case world.EntryReward:
				t.Rewards++
				if e.Total > t.Points {
					t.Points = e.Total
				}
				if e.Zone != "" {
					t.Zones[e.Zone] = true
				}
			case world.EntryChat:
				t.Chats++
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
			os.Exit(1)
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return ids[i] < ids[j]
	})

	fmt.Printf("files=%d entries=%d participants=%d\n", len(files), entries, len(ids))
	for _, id := range ids {
		t := byID[id]
		fmt.Printf("%s name=%q points=%d rewards=%d zones=%d chats=%d sessions=%d\n",
			id, t.Name, t.Points, t.Rewards, len(t.Zones), t.Chats, t.Sessions)
	}
}
