// Command soundctl is the debugging and maintenance CLI for soundprints.
//
// Usage:
//
//	soundctl                 Show help
//	soundctl events          JSONL event log viewer
//	soundctl stats           Event and upload statistics
//	soundctl uploads         Local upload history
//	soundctl fetch           Fetch one page from the API
//	soundctl resolve <id>    Resolve a playback URL
package main

import (
	"fmt"
	"os"
)

const usage = `soundctl - soundprints debug & maintenance CLI

Usage:
  soundctl <command> [flags]

Commands:
  events      JSONL event log viewer
  stats       Event counts by kind and local upload totals
  uploads     Uploads recorded on this machine
  fetch       Fetch one page by location or time (requires SOUNDPRINTS_TOKEN)
  resolve     Resolve a playback URL for a sound id (requires SOUNDPRINTS_TOKEN)

Environment:
  SOUNDPRINTS_TOKEN     API bearer token
  SOUNDPRINTS_API_URL   API base URL
  SOUNDPRINTS_PROVIDER  Auth provider header

Run 'soundctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "events":
		runEvents()
	case "stats":
		runStats()
	case "uploads":
		runUploads()
	case "fetch":
		runFetch()
	case "resolve":
		runResolve()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "soundctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
