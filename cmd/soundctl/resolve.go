package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/soundprints/internal/sound"
)

func runResolve() {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	duration := fs.Duration("duration", time.Minute, "Sound duration, sets the URL lifetime")
	fs.Parse(os.Args[1:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: soundctl resolve [-duration 1m] <sound-id>")
		os.Exit(1)
	}

	resolver := sound.NewResolver(newClient(loadConfig()))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ref, err := resolver.Resolve(ctx, sound.Item{ID: fs.Arg(0), Duration: *duration})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(ref.URL)
	fmt.Printf("expires %s (%d minute lifetime requested)\n",
		humanize.Time(ref.ExpiresAt), sound.ValidityMinutes(*duration))
}
