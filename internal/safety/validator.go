// Package safety calls an external prompt safety validator service.
package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/henrib/lumen/internal/domain"
)

// Validator is an HTTP client for the safety validation service.
type Validator struct {
	baseURL string
	http    *http.Client
}

// NewValidator creates a Validator against the given base URL.
func NewValidator(baseURL string, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Validator{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type validateRequest struct {
	Text string `json:"text"`
}

type validateResponse struct {
	IsSafe bool   `json:"is_safe"`
	Reason string `json:"reason"`
}

// Check submits text for validation. A transport or server error is
// returned to the caller, which decides whether to fail open.
func (v *Validator) Check(ctx context.Context, text string) (domain.SafetyVerdict, error) {
	body, err := json.Marshal(validateRequest{Text: text})
	if err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/validate", bytes.NewReader(body))
	if err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("safety validator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.SafetyVerdict{}, fmt.Errorf("safety validator returned status %d", resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("decode response: %w", err)
	}
	return domain.SafetyVerdict{IsSafe: out.IsSafe, Reason: out.Reason}, nil
}
