package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd queries the reward index file directly, without a running server.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/yogiworld.sqlite)")
	participant := fs.String("participant", "", "participant_id filter (rewards)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "sessions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "yogiworld.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var rows []map[string]any
	switch q {
	case "sessions":
		rows, err = queryRows(db, `SELECT participant_id, name, joined_at, left_at, points
			FROM sessions ORDER BY joined_at DESC LIMIT ?`, *limit)
	case "rewards":
		if *participant != "" {
			rows, err = queryRows(db, `SELECT seq, at, participant_id, name, zone, delta, total, reason
				FROM rewards WHERE participant_id = ? ORDER BY seq DESC LIMIT ?`, *participant, *limit)
		} else {
			rows, err = queryRows(db, `SELECT seq, at, participant_id, name, zone, delta, total, reason
				FROM rewards ORDER BY seq DESC LIMIT ?`, *limit)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want sessions|rewards)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rows)
}

func queryRows(db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rs, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rs.Err()
}
