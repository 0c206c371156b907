package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client wraps the Bot API for one bot token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, body map[string]any, result any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if !parsed.OK {
		return fmt.Errorf("bot api %s failed: %s", method, parsed.Description)
	}
	if result != nil {
		return json.Unmarshal(parsed.Result, result)
	}
	return nil
}

func (c *Client) SendText(ctx context.Context, recipientID, text string) (string, error) {
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": recipientID,
		"text":    text,
	}, &sent)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(sent.MessageID, 10), nil
}

func (c *Client) SendMedia(ctx context.Context, recipientID, mediaURL string, mediaType chatdomain.MessageType, caption string) (string, error) {
	method := "sendDocument"
	field := "document"
	switch mediaType {
	case chatdomain.TypeImage:
		method, field = "sendPhoto", "photo"
	case chatdomain.TypeVideo:
		method, field = "sendVideo", "video"
	case chatdomain.TypeVoice:
		method, field = "sendVoice", "voice"
	case chatdomain.TypeAudio:
		method, field = "sendAudio", "audio"
	}

	body := map[string]any{
		"chat_id": recipientID,
		field:     mediaURL,
	}
	if caption != "" {
		body["caption"] = caption
	}

	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, method, body, &sent); err != nil {
		return "", err
	}
	return strconv.FormatInt(sent.MessageID, 10), nil
}

func (c *Client) FetchProfile(ctx context.Context, userID string) (*channeldomain.Profile, error) {
	var chat struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Username  string `json:"username"`
	}
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": userID}, &chat); err != nil {
		return nil, err
	}
	name := chat.FirstName
	if chat.LastName != "" {
		name += " " + chat.LastName
	}
	if name == "" {
		name = chat.Username
	}
	return &channeldomain.Profile{DisplayName: name}, nil
}

// FileURL exchanges a file id for a download URL via getFile.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return "", err
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("bot api getFile returned no path")
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath), nil
}
