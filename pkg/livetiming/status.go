package livetiming

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	DefaultSignalRURL = "https://livetiming.formula1.com/signalr"
	DefaultStatusURL  = "https://livetiming.formula1.com/static/StreamingStatus.json"

	StatusAvailable = "Available"
	StatusOffline   = "Offline"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// StreamingStatus reads the published state of the live feed
// (usually "Available" or "Offline").
func StreamingStatus(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("streaming status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("streaming status: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("streaming status: %w", err)
	}
	var data struct {
		Status string `json:"Status"` //nolint:tagliatelle // wire compatibility
	}
	if err := json.Unmarshal(bytes.TrimPrefix(body, utf8BOM), &data); err != nil {
		return "", fmt.Errorf("streaming status: %w", err)
	}
	return data.Status, nil
}
