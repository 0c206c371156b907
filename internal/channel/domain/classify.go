package domain

import (
	"net/url"
	"strings"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
)

// ClassifyText decides between text and link: a message that is exactly one
// URL and nothing else is a link, anything with surrounding words stays text.
func ClassifyText(text string) (chatdomain.MessageType, string) {
	trimmed := strings.TrimSpace(text)
	fields := strings.Fields(trimmed)
	if len(fields) != 1 {
		return chatdomain.TypeText, ""
	}
	candidate := fields[0]
	parsed, err := url.Parse(candidate)
	if err != nil {
		return chatdomain.TypeText, ""
	}
	if (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != "" {
		return chatdomain.TypeLink, candidate
	}
	return chatdomain.TypeText, ""
}

// AttachmentType maps a channel attachment tag onto the canonical message
// types. Unrecognized kinds default to file.
func AttachmentType(tag string) chatdomain.MessageType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "image", "photo", "sticker":
		return chatdomain.TypeImage
	case "video", "video_note":
		return chatdomain.TypeVideo
	case "voice":
		return chatdomain.TypeVoice
	case "audio":
		return chatdomain.TypeAudio
	case "link", "share", "url":
		return chatdomain.TypeLink
	default:
		return chatdomain.TypeFile
	}
}
