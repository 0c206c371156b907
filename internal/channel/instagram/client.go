package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Client talks to the Graph messaging API for one page access token.
type Client struct {
	http        *http.Client
	baseURL     string
	accessToken string
}

func NewClient(httpClient *http.Client, baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	return &Client{
		http:        httpClient,
		baseURL:     baseURL,
		accessToken: accessToken,
	}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) SendText(ctx context.Context, recipientID, text string) (string, error) {
	return c.send(ctx, map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message":   map[string]any{"text": text},
	})
}

func (c *Client) SendMedia(ctx context.Context, recipientID, mediaURL string, mediaType chatdomain.MessageType, caption string) (string, error) {
	attachmentType := "file"
	switch mediaType {
	case chatdomain.TypeImage:
		attachmentType = "image"
	case chatdomain.TypeVideo:
		attachmentType = "video"
	case chatdomain.TypeVoice, chatdomain.TypeAudio:
		attachmentType = "audio"
	}
	id, err := c.send(ctx, map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message": map[string]any{
			"attachment": map[string]any{
				"type":    attachmentType,
				"payload": map[string]any{"url": mediaURL},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if caption != "" {
		if _, err := c.SendText(ctx, recipientID, caption); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (c *Client) send(ctx context.Context, body map[string]any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.baseURL, url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("graph send failed: %s (code %d)", parsed.Error.Message, parsed.Error.Code)
	}
	return parsed.MessageID, nil
}

func (c *Client) FetchProfile(ctx context.Context, userID string) (*channeldomain.Profile, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=name,profile_pic&access_token=%s",
		c.baseURL, url.PathEscape(userID), url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		Name       string `json:"name"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &channeldomain.Profile{
		DisplayName: parsed.Name,
		AvatarURL:   parsed.ProfilePic,
	}, nil
}

// FileURL is the identity on this channel: webhook attachments already carry
// CDN URLs.
func (c *Client) FileURL(_ context.Context, fileID string) (string, error) {
	return fileID, nil
}
