// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tubebox/internal/api/connect"
)

var (
	app    = kingpin.New("jukectl", "tubebox control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("admin-token", "Admin token for pause/resume/skip (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// add command
	addCmd   = app.Command("add", "Append a track to the queue")
	addID    = addCmd.Arg("id", "Video ID or URL").Required().String()
	addTitle = addCmd.Arg("title", "Display title").String()

	// boost command
	boostCmd   = app.Command("boost", "Append a track to the priority queue")
	boostID    = boostCmd.Arg("id", "Video ID or URL").Required().String()
	boostTitle = boostCmd.Arg("title", "Display title").String()

	// queue command
	queueCmd = app.Command("queue", "List both queues")

	// status command
	statusCmd = app.Command("status", "Get playback status")

	// pause command
	pauseCmd = app.Command("pause", "Pause playback")

	// resume command
	resumeCmd = app.Command("resume", "Resume playback")

	// skip command
	skipCmd = app.Command("skip", "Skip the current track")

	// search command
	searchCmd   = app.Command("search", "Search for tracks")
	searchQuery = searchCmd.Arg("query", "Search query").Required().String()

	// watch command
	watchCmd = app.Command("watch", "Stream notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	switch command {
	case addCmd.FullCommand():
		res := must(client.AddTrack(ctx, *addID, *addTitle, false))
		fmt.Printf("Status: %v\n", res["status"])
		printTracks("Queue", res["queue"])
	case boostCmd.FullCommand():
		res := must(client.AddTrack(ctx, *boostID, *boostTitle, true))
		fmt.Printf("Status: %v\n", res["status"])
		printTracks("Priority Queue", res["priority_queue"])
	case queueCmd.FullCommand():
		res := must(client.ListQueues(ctx))
		printTracks("Priority Queue", res["priority"])
		printTracks("Queue", res["queue"])
	case statusCmd.FullCommand():
		printStatus(must(client.Status(ctx)))
	case pauseCmd.FullCommand():
		fmt.Printf("Status: %v\n", must(client.Pause(ctx))["status"])
	case resumeCmd.FullCommand():
		fmt.Printf("Status: %v\n", must(client.Resume(ctx))["status"])
	case skipCmd.FullCommand():
		fmt.Printf("Status: %v\n", must(client.Skip(ctx))["status"])
	case searchCmd.FullCommand():
		printResults(must(client.Search(ctx, *searchQuery))["results"])
	case watchCmd.FullCommand():
		watch(ctx, client)
	}
}

func must(res map[string]any, err error) map[string]any {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return res
}

func watch(ctx context.Context, client *apiconnect.Client) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching notifications. Press Ctrl+C to exit.")

	err := client.Watch(ctx, printNotification)
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nUnsubscribed")
}

func printNotification(n map[string]any) {
	fmt.Printf("\n[Sequence: %v] === %v ===\n", n["sequence"], n["type"])

	if t, ok := n["track"].(map[string]any); ok {
		fmt.Printf("  Track: %s\n", formatTrack(t))
	}
	if status, ok := n["status"].(map[string]any); ok {
		if n["type"] == "progress" {
			fmt.Printf("  Position: %v / %v seconds\n", status["position"], status["duration"])
		} else {
			printStatus(status)
		}
	}
	if _, ok := n["queue"]; ok {
		printTracks("Priority Queue", n["priority"])
		printTracks("Queue", n["queue"])
	}
	if msg, ok := n["error"]; ok {
		fmt.Printf("  Error: %v\n", msg)
	}
}

func printStatus(s map[string]any) {
	fmt.Printf("State: %v\n", s["state"])
	current, ok := s["current"].(map[string]any)
	if !ok {
		fmt.Println("No track currently playing")
		return
	}
	fmt.Printf("Currently Playing: %s\n", formatTrack(current))
	fmt.Printf("  Position: %v / %v seconds\n", s["position"], s["duration"])
	fmt.Printf("  Paused: %v\n", s["paused"])
}

func printTracks(label string, raw any) {
	tracks, _ := raw.([]any)
	fmt.Printf("%s (%d):\n", label, len(tracks))
	for i, item := range tracks {
		if t, ok := item.(map[string]any); ok {
			fmt.Printf("  %2d. %s\n", i+1, formatTrack(t))
		}
	}
}

func printResults(raw any) {
	results, _ := raw.([]any)
	if len(results) == 0 {
		fmt.Println("No results")
		return
	}
	for i, item := range results {
		r, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  %2d. [%v] %s\n", i+1, r["source"], formatTrack(r))
	}
}

func formatTrack(t map[string]any) string {
	title, _ := t["title"].(string)
	if title == "" {
		return fmt.Sprintf("%v", t["id"])
	}
	return fmt.Sprintf("%s (%v)", title, t["id"])
}
