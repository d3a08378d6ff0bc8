package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:3000", "server base url")
	_ = fs.Parse(args)

	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state")
}

func rewardsCmd(args []string) {
	fs := flag.NewFlagSet("rewards", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:3000", "server base url")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	getAndPrint(fmt.Sprintf("%s/admin/v1/rewards?limit=%d", strings.TrimRight(strings.TrimSpace(*baseURL), "/"), *limit))
}

func getAndPrint(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
