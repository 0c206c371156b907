package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/chatlyhq/chatly/internal/config"
	"github.com/chatlyhq/chatly/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	runPollInterval = time.Second
	runPollBudget   = 90 * time.Second
)

// OpenAI implements Client over the assistants API.
type OpenAI struct {
	http  *http.Client
	log   *zap.Logger
	store storage.Store

	baseURL  string
	apiKey   string
	ttsModel string
	ttsVoice string
}

type OpenAIParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Store  storage.Store
}

func NewOpenAI(p OpenAIParam) Client {
	return &OpenAI{
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   p.Log.Named("llm.openai"),
		store: p.Store,

		baseURL:  p.Config.OpenAIBaseURL,
		apiKey:   p.Config.OpenAIAPIKey,
		ttsModel: p.Config.TTSModel,
		ttsVoice: p.Config.TTSVoice,
	}
}

func (c *OpenAI) Configured() bool {
	return c.apiKey != ""
}

func (c *OpenAI) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *OpenAI) doJSON(ctx context.Context, method, path string, body any, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := c.request(ctx, method, path, reader, "application/json")
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("openai %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *OpenAI) CreateThread(ctx context.Context) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *OpenAI) SendMessage(ctx context.Context, threadID string, content MessageContent) (string, error) {
	blocks := make([]map[string]any, 0, 1+len(content.ImageFileIDs)+len(content.ImageURLs))
	if content.Text != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": content.Text})
	}
	for _, fileID := range content.ImageFileIDs {
		blocks = append(blocks, map[string]any{
			"type":       "image_file",
			"image_file": map[string]any{"file_id": fileID},
		})
	}
	for _, imageURL := range content.ImageURLs {
		blocks = append(blocks, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": imageURL},
		})
	}
	if len(blocks) == 0 {
		blocks = append(blocks, map[string]any{"type": "text", "text": "(empty message)"})
	}

	var created struct {
		ID string `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/messages", map[string]any{
		"role":    "user",
		"content": blocks,
	}, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// RunAndGetResponse starts a run and polls it to a terminal state, then reads
// the newest assistant message.
func (c *OpenAI) RunAndGetResponse(ctx context.Context, threadID, assistantRemoteID string) (string, error) {
	var run struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs", map[string]any{
		"assistant_id": assistantRemoteID,
	}, &run)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(runPollBudget)
	for run.Status == "queued" || run.Status == "in_progress" {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: run %s still %s after poll budget", ErrRunFailed, run.ID, run.Status)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(runPollInterval):
		}
		if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+run.ID, nil, &run); err != nil {
			return "", err
		}
	}
	if run.Status != "completed" {
		return "", fmt.Errorf("%w: run %s ended %s", ErrRunFailed, run.ID, run.Status)
	}

	var messages struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=desc&limit=5", nil, &messages); err != nil {
		return "", err
	}
	for _, msg := range messages.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, block := range msg.Content {
			if block.Type == "text" && block.Text.Value != "" {
				return block.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("%w: run %s produced no text", ErrRunFailed, run.ID)
}

func (c *OpenAI) UploadFile(ctx context.Context, name string, r io.Reader, purpose string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", purpose); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := c.request(ctx, http.MethodPost, "/files", &buf, writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("openai file upload: status %d: %s", resp.StatusCode, raw)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", err
	}
	return uploaded.ID, nil
}

func (c *OpenAI) CreateSpeech(ctx context.Context, text string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	raw, err := json.Marshal(map[string]any{
		"model": c.ttsModel,
		"voice": c.ttsVoice,
		"input": text,
	})
	if err != nil {
		return "", err
	}
	req, err := c.request(ctx, http.MethodPost, "/audio/speech", bytes.NewReader(raw), "application/json")
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("openai speech: status %d: %s", resp.StatusCode, body)
	}

	name := fmt.Sprintf("speech_%s.mp3", uuid.NewString())
	return c.store.Put(ctx, name, resp.Body)
}

var Module = fx.Module("llm",
	fx.Provide(NewOpenAI),
)
