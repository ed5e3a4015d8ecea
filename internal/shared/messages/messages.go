package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Render replaces {name} placeholders in the title and body.
func (m MessageText) Render(vars map[string]string) MessageText {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return MessageText{Title: r.Replace(m.Title), Body: r.Replace(m.Body)}
}

type Messages struct {
	LinkLoginRequired MessageText `json:"link_login_required"`
	LinkRevoked       MessageText `json:"link_revoked"`
	SyncComplete      MessageText `json:"sync_complete"`
}

// Default returns the built-in texts used when no messages file is configured.
func Default() *Messages {
	return &Messages{
		LinkLoginRequired: MessageText{
			Title: "Reconnect {institution}",
			Body:  "Your connection to {institution} needs you to sign in again to keep balances up to date.",
		},
		LinkRevoked: MessageText{
			Title: "{institution} disconnected",
			Body:  "Access to {institution} was revoked. Link it again to resume tracking.",
		},
		SyncComplete: MessageText{
			Title: "New transactions",
			Body:  "{count} new transactions from {institution}.",
		},
	}
}

var (
	loaded   Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the notifications JSON file and caches the result.
// Entries missing from the file keep their default text.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		loaded = *Default()
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read messages file: %w", err)
			return
		}
		if err := json.Unmarshal(data, &loaded); err != nil {
			loadErr = fmt.Errorf("failed to parse messages file: %w", err)
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return &loaded, nil
}
