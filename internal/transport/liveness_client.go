package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LivenessStatus is the decoded shape of a /health/liveness reply, for
// callers (the operator CLI, the server-reuse check in agentmaild) that
// need to talk to a kernel they don't own.
type LivenessStatus struct {
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
}

// CheckLiveness GETs addr's /health/liveness and decodes the reply. It is
// the client-side counterpart to StoreHealth.Liveness.
func CheckLiveness(addr string, timeout time.Duration) (*LivenessStatus, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get("http://" + addr + "/health/liveness")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var status LivenessStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode liveness reply: %w", err)
	}
	return &status, nil
}
