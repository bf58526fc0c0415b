package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Admin tool that fires a single event at a running engine over its
// HTTP API. Useful for driving a process through its workflow by hand.

type fireEventRequest struct {
	Event       string            `json:"event"`
	ActorID     string            `json:"actor_id"`
	RequestType string            `json:"request_type,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "engine base URL")
		processID = flag.String("process", "", "process public id (required)")
		eventName = flag.String("event", "", "event to fire (required)")
		actorID   = flag.String("actor", "00000000-0000-0000-0000-000000000001", "actor id")
		dataPairs = flag.String("data", "", "request data as comma separated key=value pairs")
	)
	flag.Parse()

	if *processID == "" || *eventName == "" {
		flag.Usage()
		os.Exit(2)
	}

	payload := fireEventRequest{
		Event:   *eventName,
		ActorID: *actorID,
		Channel: "API",
		Data:    parseDataPairs(*dataPairs),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to encode request: %v", err)
	}

	url := fmt.Sprintf("%s/api/v1/processes/%s/events", *serverURL, *processID)
	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	fmt.Printf("HTTP %d\n%s\n", resp.StatusCode, respBody)
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func parseDataPairs(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	data := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			log.Fatalf("Invalid data pair %q, expected key=value", pair)
		}
		data[kv[0]] = kv[1]
	}
	return data
}
