package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Dipraise1/trading-engine/types"
)

// SecurityReport is an external rug-check verdict for a token
type SecurityReport struct {
	IsSafe   bool     `json:"is_safe"`
	RugScore float64  `json:"rug_score"` // 0 clean .. 100 certain rug
	Warnings []string `json:"warnings"`
}

// SecurityChecker queries an external token safety service before buys.
// An empty base URL disables checking and approves everything.
type SecurityChecker struct {
	baseURL    string
	httpClient *http.Client
}

func NewSecurityChecker(baseURL string) *SecurityChecker {
	return &SecurityChecker{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check fetches the safety verdict for a token. Fails closed: an
// unreachable service rejects the token.
func (s *SecurityChecker) Check(ctx context.Context, chain types.Chain, token string) (*SecurityReport, error) {
	if s.baseURL == "" {
		return &SecurityReport{IsSafe: true}, nil
	}

	url := fmt.Sprintf("%s/check/%s/%s", s.baseURL, chain, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("security check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("security check status %d", resp.StatusCode)
	}

	var report SecurityReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode security report: %w", err)
	}

	if !report.IsSafe {
		log.Warn().
			Str("token", token).
			Float64("rug_score", report.RugScore).
			Strs("warnings", report.Warnings).
			Msg("⚠️ Token failed security check")
	}

	return &report, nil
}
