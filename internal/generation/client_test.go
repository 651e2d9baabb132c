package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumagen/lumagen/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	return client, server
}

func TestGenerateParsesInlineArtifacts(t *testing.T) {
	imageBytes := []byte{0x89, 0x50, 0x4e, 0x47}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req map[string]any
		if errDecode := json.NewDecoder(r.Body).Decode(&req); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		if req["model"] != "gemini-2.5-flash-image" {
			t.Errorf("unexpected model %v", req["model"])
		}

		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"multi_mod_content": []map[string]any{
						{"text": "here you go"},
						{"inline_data": map[string]any{
							"mime_type": "image/png",
							"data":      base64.StdEncoding.EncodeToString(imageBytes),
						}},
					},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	result, errGen := client.Generate(context.Background(), Request{
		Model:  "gemini-2.5-flash-image",
		Prompt: "a red square",
	})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if result.Text != "here you go" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(result.Artifacts))
	}
	if result.Artifacts[0].Ext != ".png" {
		t.Fatalf("expected .png, got %q", result.Artifacts[0].Ext)
	}
	if string(result.Artifacts[0].Data) != string(imageBytes) {
		t.Fatalf("artifact bytes corrupted")
	}
}

func TestGenerateInlinesInputImagesAsDataURLs(t *testing.T) {
	var sawImagePart bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if errDecode := json.NewDecoder(r.Body).Decode(&req); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		for _, msg := range req.Messages {
			for _, part := range msg.Content {
				if part.Type == "image_url" && part.ImageURL != nil {
					if len(part.ImageURL.URL) > 23 && part.ImageURL.URL[:23] == "data:image/jpeg;base64," {
						sawImagePart = true
					}
				}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": "ok"},
			}},
		})
	})

	_, errGen := client.Generate(context.Background(), Request{
		Model:       "gemini-2.5-flash-image",
		Prompt:      "edit this",
		InputImages: [][]byte{{0xff, 0xd8}},
	})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if !sawImagePart {
		t.Fatalf("expected an inlined data URL image part")
	}
}

func TestGenerateMultipleOutputsMakesMultipleCalls(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"multi_mod_content": []map[string]any{
						{"inline_data": map[string]any{
							"mime_type": "image/jpeg",
							"data":      base64.StdEncoding.EncodeToString([]byte("x")),
						}},
					},
				},
			}},
		})
	})

	result, errGen := client.Generate(context.Background(), Request{
		Model:       "gemini-2.5-flash-image",
		Prompt:      "three variants",
		OutputCount: 3,
	})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if calls != 3 {
		t.Fatalf("expected 3 provider calls, got %d", calls)
	}
	if len(result.Artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(result.Artifacts))
	}
}

func TestGenerateProviderErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	})
	if _, errGen := client.Generate(context.Background(), Request{Model: "m", Prompt: "p"}); errGen == nil {
		t.Fatalf("expected error for non-200 provider status")
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{},
			}},
		})
	})
	_, errGen := client.Generate(context.Background(), Request{Model: "m", Prompt: "p"})
	if !errors.Is(errGen, ErrNoArtifacts) {
		t.Fatalf("expected ErrNoArtifacts, got %v", errGen)
	}
}
