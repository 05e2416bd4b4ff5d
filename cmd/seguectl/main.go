// seguectl sends a single playback command to a running segue daemon over
// its control websocket, or prints the daemon's status.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/llehouerou/segue/internal/remote"
)

const dialTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "localhost:8732", "daemon address (host:port)")
	track := flag.String("track", "", "track name for play (empty advances)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	action := flag.Arg(0)

	var err error
	switch action {
	case "play", "pause", "resume", "stop", "skip", "ping":
		err = send(*addr, action, *track)
	case "status":
		err = status(*addr)
	default:
		fmt.Fprintf(os.Stderr, "seguectl: unknown action %q\n", action)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "seguectl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: seguectl [flags] <action>

Actions:
  play      start a track (use -track, empty advances to the next one)
  pause     pause the current track
  resume    resume the paused track
  stop      fade out and stop
  skip      advance to the next track
  ping      check the control connection
  status    print the daemon's playback status

Flags:
`)
	flag.PrintDefaults()
}

func send(addr, action, track string) error {
	conn, err := remote.Dial("ws://"+addr+"/ws/control", dialTimeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(remote.Message{Type: action, Track: track}); err != nil {
		return fmt.Errorf("sending %s: %w", action, err)
	}

	if action == "ping" {
		conn.SetReadDeadline(time.Now().Add(dialTimeout))
		var reply remote.Message
		if err := conn.ReadJSON(&reply); err != nil {
			return fmt.Errorf("waiting for pong: %w", err)
		}
		fmt.Println(reply.Type)
	}
	return nil
}

func status(addr string) error {
	client := &http.Client{Timeout: dialTimeout}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return fmt.Errorf("querying %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Re-indent for the terminal.
	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		return err
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
