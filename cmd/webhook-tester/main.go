// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// webhook-tester is a tool for sending a synthetic webhook delivery to
// a running Fisher instance and checking the response it returns.
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
)

var (
	webhookURL       = flag.String("webhook-url", "", "The URL of the Fisher hook endpoint to test, e.g. http://localhost:8000/hook/deploy.")
	provider         = flag.String("provider", "github", "Which provider headers to send: github, gitlab, or none.")
	event            = flag.String("event", "push", "The event name to send (X-GitHub-Event or X-Gitlab-Event).")
	secret           = flag.String("secret", "", "The shared secret to sign (GitHub) or present (GitLab) the request with. If empty, no signature/token header is sent.")
	payload          = flag.String("payload", "", "The payload to send. If empty, a default minimal JSON payload is used.")
	payloadFile      = flag.String("payload-file", "", "The path to a file containing the payload to send.")
	expectHTTPStatus = flag.Int("expect-http-status", http.StatusOK, "The expected HTTP status code.")
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer done()

	if err := realMain(ctx); err != nil {
		done()
		log.Printf("process exited with error: %v", err)
		os.Exit(1)
	}
}

func realMain(ctx context.Context) error {
	flag.Parse()

	if *webhookURL == "" {
		return fmt.Errorf("--webhook-url is required")
	}

	body := *payload
	if *payloadFile != "" {
		payloadBytes, err := os.ReadFile(*payloadFile)
		if err != nil {
			return fmt.Errorf("failed to read payload file: %w", err)
		}
		body = string(payloadBytes)
	}
	if body == "" {
		body = `{"ref":"refs/heads/main","head_commit":{"id":"deadbeef"}}`
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *webhookURL, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	switch *provider {
	case "github":
		req.Header.Set("X-GitHub-Event", *event)
		req.Header.Set("X-GitHub-Delivery", uuid.New().String())
		if *secret != "" {
			req.Header.Set("X-Hub-Signature", "sha1="+githubSignature([]byte(*secret), []byte(body)))
		}
	case "gitlab":
		req.Header.Set("X-Gitlab-Event", *event)
		if *secret != "" {
			req.Header.Set("X-Gitlab-Token", *secret)
		}
	case "none":
		// Standalone hooks need no provider headers at all.
	default:
		return fmt.Errorf("unknown --provider %q, want github, gitlab, or none", *provider)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	limitReader := &io.LimitedReader{R: resp.Body, N: 4_194_304}
	respBody, err := io.ReadAll(limitReader)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	log.Printf("Status: %s", resp.Status)
	log.Printf("Body: %s", string(respBody))

	if resp.StatusCode != *expectHTTPStatus {
		return fmt.Errorf("expected status %d, but got %d", *expectHTTPStatus, resp.StatusCode)
	}

	var envelope struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to parse JSON response from webhook: %w", err)
	}

	log.Printf("Successfully received expected status code %d (status=%q).", *expectHTTPStatus, envelope.Status)
	return nil
}

// githubSignature computes the hex-encoded HMAC-SHA1 signature Fisher's
// GitHub provider expects in X-Hub-Signature.
func githubSignature(secret, body []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
