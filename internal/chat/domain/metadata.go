package domain

import (
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	metaThreadsKey  = "assistant_threads"
	metaClientKey   = "client_id"
	metaInactiveKey = "assistant_inactive"
)

// DecodeMetadata never fails: malformed or empty metadata decodes to an empty
// map so callers can patch it unconditionally.
func DecodeMetadata(raw datatypes.JSON) map[string]any {
	meta := map[string]any{}
	if len(raw) == 0 {
		return meta
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

func EncodeMetadata(meta map[string]any) (datatypes.JSON, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// MergeMetadata merges patch into dst recursively. Maps merge key by key,
// everything else is replaced, keys absent from the patch are untouched.
func MergeMetadata(dst, patch map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range patch {
		existing, ok := dst[key].(map[string]any)
		incoming, ok2 := value.(map[string]any)
		if ok && ok2 {
			dst[key] = MergeMetadata(existing, incoming)
			continue
		}
		dst[key] = value
	}
	return dst
}

// ThreadID returns the remote conversation id recorded for the assistant, or
// "" when no thread has been created yet.
func (c *Chat) ThreadID(assistantID snowflake.ID) string {
	meta := DecodeMetadata(c.Metadata)
	threads, ok := meta[metaThreadsKey].(map[string]any)
	if !ok {
		return ""
	}
	threadID, _ := threads[assistantID.String()].(string)
	return threadID
}

// ThreadPatch builds the metadata patch that records a thread id for the
// assistant without touching sibling assistants' threads.
func ThreadPatch(assistantID snowflake.ID, threadID string) map[string]any {
	return map[string]any{
		metaThreadsKey: map[string]any{
			assistantID.String(): threadID,
		},
	}
}

// LinkedClientID returns the CRM client linked to this chat, if any.
func (c *Chat) LinkedClientID() (snowflake.ID, bool) {
	meta := DecodeMetadata(c.Metadata)
	raw, ok := meta[metaClientKey].(string)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func ClientPatch(clientID snowflake.ID) map[string]any {
	return map[string]any{metaClientKey: clientID.String()}
}

// AssistantMuted reports whether the chat has been explicitly marked to skip
// automated replies, typically by a human agent taking over.
func (c *Chat) AssistantMuted() bool {
	meta := DecodeMetadata(c.Metadata)
	muted, _ := meta[metaInactiveKey].(bool)
	return muted
}
