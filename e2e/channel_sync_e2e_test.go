//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-channel-sync/app/types"
)

const defaultHTTPBase = "http://localhost:48080"

func httpBase() string {
	if v := os.Getenv("E2E_HTTP_BASE"); v != "" {
		return v
	}
	return defaultHTTPBase
}

func webhookSecret() string {
	if v := os.Getenv("E2E_WEBHOOK_SECRET"); v != "" {
		return v
	}
	return "whsec_e2e"
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func (c *httpClient) postSignedWebhook(t *testing.T, endpoint string, payload []byte) (*http.Response, []byte) {
	t.Helper()

	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(webhookSecret()))
	mac.Write([]byte(ts + "." + string(payload)))
	signature := "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/webhooks/payments/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("service at %s did not become healthy within %s", baseURL, timeout)
}

func TestMain(m *testing.M) {
	if err := waitForHTTP(httpBase(), 30*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestWebhookIngestIsIdempotent(t *testing.T) {
	client := newHTTPClient(httpBase())

	eventID := fmt.Sprintf("evt_e2e_%d", time.Now().UnixNano())
	payload := []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_e2e_%d",
			"amount": 1000,
			"currency": "usd"
		}}
	}`, eventID, time.Now().UnixNano()))

	resp, body := client.postSignedWebhook(t, "production", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var first types.AckResponse
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if first.EventId != eventID {
		t.Fatalf("unexpected event id: %q", first.EventId)
	}

	resp, body = client.postSignedWebhook(t, "production", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d: %s", resp.StatusCode, body)
	}
	var second types.AckResponse
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatalf("unmarshal replay ack: %v", err)
	}
	if second.Outcome != "duplicate" {
		t.Fatalf("expected duplicate outcome on replay, got %q", second.Outcome)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	client := newHTTPClient(httpBase())

	resp, _ := client.doJSON(t, http.MethodPost, "/webhooks/payments/production",
		map[string]any{"id": "evt_bad", "type": "payment_intent.succeeded"},
		map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", resp.StatusCode)
	}
}

func TestTriggerSyncAndListLogs(t *testing.T) {
	channelID := os.Getenv("E2E_SYNC_CHANNEL")
	if channelID == "" {
		t.Skip("E2E_SYNC_CHANNEL not set")
	}
	client := newHTTPClient(httpBase())

	resp, body := client.doJSON(t, http.MethodPost, "/sync/trigger",
		map[string]string{"channel": channelID, "operation": "catalog_push"}, nil)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 200 or 409, got %d: %s", resp.StatusCode, body)
	}

	resp, body = client.doJSON(t, http.MethodGet, "/sync/logs?channel="+channelID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from logs, got %d: %s", resp.StatusCode, body)
	}
	var logs types.ListSyncLogsResponse
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatalf("unmarshal logs: %v", err)
	}
	if len(logs.Logs) == 0 {
		t.Fatal("expected at least one sync log after trigger")
	}
}

func TestTriggerSyncValidation(t *testing.T) {
	client := newHTTPClient(httpBase())

	resp, _ := client.doJSON(t, http.MethodPost, "/sync/trigger",
		map[string]string{"channel": "mira", "operation": "full_resync"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown operation, got %d", resp.StatusCode)
	}
}
