// Package generation calls the upstream OpenAI-compatible provider to
// produce image and video artifacts.
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lumagen/lumagen/internal/config"
)

// ErrNoArtifacts indicates the provider answered without any usable output.
var ErrNoArtifacts = errors.New("generation: provider returned no artifacts")

// Request describes one generation call to the provider.
type Request struct {
	Model       string
	Prompt      string
	InputImages [][]byte // Raw input image bytes, inlined as data URLs.
	OutputCount int
}

// Artifact is one produced output.
type Artifact struct {
	Data []byte
	Ext  string // File extension including the dot.
}

// Result holds everything a provider call produced.
type Result struct {
	Text      string
	Artifacts []Artifact
}

// Invoker is the provider abstraction the HTTP layer depends on.
type Invoker interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint that
// returns multimodal content parts.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client from config.
func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// chatMessagePart is one entry in a multimodal request message.
type chatMessagePart struct {
	Type     string               `json:"type"`
	Text     string               `json:"text,omitempty"`
	ImageURL *chatMessageImageURL `json:"image_url,omitempty"`
}

type chatMessageImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatMessagePart `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Modalities  []string      `json:"modalities"`
	Temperature float64       `json:"temperature"`
}

// inlinePart mirrors the provider's multimodal response parts.
type inlinePart struct {
	Text       *string `json:"text"`
	InlineData *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"inline_data"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content         string       `json:"content"`
			MultiModContent []inlinePart `json:"multi_mod_content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate performs one provider round trip per requested output and
// collects the artifacts. Temperature is nudged per round so repeated
// outputs differ.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	rounds := req.OutputCount
	if rounds < 1 {
		rounds = 1
	}

	result := &Result{}
	for i := 0; i < rounds; i++ {
		round, errRound := c.generateOnce(ctx, req, 0.7+0.1*float64(i))
		if errRound != nil {
			return nil, errRound
		}
		if round.Text != "" {
			result.Text = round.Text
		}
		result.Artifacts = append(result.Artifacts, round.Artifacts...)
	}
	if len(result.Artifacts) == 0 && result.Text == "" {
		return nil, ErrNoArtifacts
	}
	return result, nil
}

func (c *Client) generateOnce(ctx context.Context, req Request, temperature float64) (*Result, error) {
	parts := []chatMessagePart{{Type: "text", Text: req.Prompt}}
	for _, img := range req.InputImages {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
		parts = append(parts, chatMessagePart{
			Type:     "image_url",
			ImageURL: &chatMessageImageURL{URL: dataURL},
		})
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		Modalities:  []string{"text", "image"},
		Temperature: temperature,
	}
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return nil, fmt.Errorf("generation: encode request: %w", errMarshal)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if errReq != nil {
		return nil, fmt.Errorf("generation: build request: %w", errReq)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return nil, fmt.Errorf("generation: call provider: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if errRead != nil {
		return nil, fmt.Errorf("generation: read provider response: %w", errRead)
	}
	if resp.StatusCode != http.StatusOK {
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"model":  req.Model,
		}).Warn("generation: provider call failed")
		return nil, fmt.Errorf("generation: provider returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
		return nil, fmt.Errorf("generation: decode provider response: %w", errDecode)
	}
	if len(decoded.Choices) == 0 {
		return nil, ErrNoArtifacts
	}

	result := &Result{}
	message := decoded.Choices[0].Message
	for _, part := range message.MultiModContent {
		if part.Text != nil && *part.Text != "" {
			result.Text = *part.Text
			continue
		}
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		data, errDecodeB64 := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if errDecodeB64 != nil {
			log.WithError(errDecodeB64).Warn("generation: skipping undecodable inline artifact")
			continue
		}
		result.Artifacts = append(result.Artifacts, Artifact{
			Data: data,
			Ext:  extForMime(part.InlineData.MimeType),
		})
	}
	if result.Text == "" && message.Content != "" {
		result.Text = message.Content
	}
	return result, nil
}

// extForMime maps a provider MIME type to a stored file extension.
func extForMime(mime string) string {
	switch {
	case strings.Contains(mime, "png"):
		return ".png"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "video"):
		return ".mp4"
	case strings.Contains(mime, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
