// Package faceclient talks to the face recognition service that backs the
// facial_recognition attendance method.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Verification is the outcome of a 1:1 check of an image against a student's enrolled face.
type Verification struct {
	StudentID  string  `json:"user_id"`
	Verified   bool    `json:"verified"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
}

// Accepted reports whether the service verified the face with at least minConfidence similarity.
func (v Verification) Accepted(minConfidence float64) bool {
	return v.Verified && v.Similarity >= minConfidence
}

// Client calls the face recognition microservice. With Skip set it answers
// locally with a fixed positive match.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // Face processing can take time
		},
	}
}

// Verify checks imageURL against the face enrolled for studentID.
func (c *Client) Verify(ctx context.Context, studentID, imageURL string) (Verification, error) {
	if studentID == "" || imageURL == "" {
		return Verification{}, errors.New("student id and image url required")
	}
	if c.Skip {
		return Verification{StudentID: studentID, Verified: true, Similarity: 0.92, Threshold: 0.45}, nil
	}

	body, _ := json.Marshal(map[string]string{
		"user_id":   studentID,
		"image_url": imageURL,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Verification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Verification{}, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Verification{}, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out Verification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verification{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.StudentID == "" {
		out.StudentID = studentID
	}
	return out, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
