package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reelay/reelay/internal/domain"
)

const (
	// The provider has no documented latency bound; without a client timeout
	// a hung synthesis call would pin the single-flight slot forever.
	defaultTimeout = 30 * time.Second

	authHeader = "xi-api-key"

	// A key with this many characters or fewer left is treated as empty
	// rather than risking a mid-sentence quota failure.
	minUsableChars = 100
)

// Fixed voice rendering parameters sent with every synthesis request.
const (
	voiceStability       = 0.5
	voiceSimilarityBoost = 0.75
	voiceStyle           = 0.0
	voiceSpeakerBoost    = true
)

// Client talks to the quota-limited narration provider. Authentication is
// per-request: callers pass the pool key to use for each call.
type Client struct {
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a narration provider client.
func NewClient(baseURL, voiceID, modelID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		voiceID: voiceID,
		modelID: modelID,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// subscriptionResponse is the quota-status payload
type subscriptionResponse struct {
	CharacterCount int `json:"character_count"`
	CharacterLimit int `json:"character_limit"`
}

// synthesisRequest is the synthesis call body
type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Probe queries the provider's quota endpoint with key and derives its
// KeyRecord. A transport or parse failure yields status error with a -1
// remaining sentinel, never an error return.
func (c *Client) Probe(ctx context.Context, key string) domain.KeyRecord {
	record := domain.KeyRecord{Key: key, Remaining: -1, Status: domain.KeyStatusError}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/user/subscription", nil)
	if err != nil {
		return record
	}
	req.Header.Set(authHeader, key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("quota probe failed", "error", err)
		return record
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("quota probe rejected", "status", resp.StatusCode)
		return record
	}

	var sub subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		c.logger.Debug("quota probe parse failed", "error", err)
		return record
	}

	record.Used = sub.CharacterCount
	record.Limit = sub.CharacterLimit
	record.Remaining = sub.CharacterLimit - sub.CharacterCount
	if record.Remaining > minUsableChars {
		record.Status = domain.KeyStatusActive
	} else {
		record.Status = domain.KeyStatusEmpty
	}
	return record
}

// Synthesize renders text to audio with key. Auth and quota rejections map
// to domain sentinels so the service can decide whether to rotate; anything
// else maps to ErrProviderUnavailable and is treated as transient.
func (c *Client) Synthesize(ctx context.Context, key, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       voiceStability,
			SimilarityBoost: voiceSimilarityBoost,
			Style:           voiceStyle,
			UseSpeakerBoost: voiceSpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(authHeader, key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	c.logger.Debug("synthesis request", "chars", len(text))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("synthesis request failed", "error", err)
		return nil, domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusPaymentRequired:
		return nil, domain.ErrAuthFailed
	case http.StatusTooManyRequests:
		return nil, domain.ErrQuotaExhausted
	default:
		c.logger.Error("synthesis rejected", "status", resp.StatusCode)
		return nil, domain.ErrProviderUnavailable
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrProviderUnavailable
	}
	return audio, nil
}
