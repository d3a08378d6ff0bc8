package main

import (
	"flag"
	"fmt"
	"os"

	"yogiworld.io/internal/protocol/schema"
)

func main() {
	out := flag.String("out", "./schemas", "output directory for *.schema.json")
	flag.Parse()

	if err := schema.WriteAll(*out); err != nil {
		fmt.Fprintln(os.Stderr, "write schemas:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d schemas to %s\n", len(schema.Names()), *out)
}
