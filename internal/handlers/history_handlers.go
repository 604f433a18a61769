package handlers

import (
	"encoding/base64"
	"time"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

const defaultHistoryLimit = 50
const maxHistoryLimit = 500

func parseUnixMillis(v interface{}) *time.Time {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	tm := time.UnixMilli(int64(f)).UTC()
	return &tm
}

// GetHistory implements spec.md §4.E "get_history".
func GetHistory(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	chatType, _ := env.Metadata["chat_type"].(string)
	targetID, _ := env.Metadata["target_id"].(string)
	if targetID == "" || (chatType != string(t.ChatSingle) && chatType != string(t.ChatGroup)) {
		return fail(env.Type, "protocol_malformed")
	}

	limit := defaultHistoryLimit
	if v, ok := env.Metadata["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := 0
	if v, ok := env.Metadata["offset"].(float64); ok && v > 0 {
		offset = int(v)
	}

	q := t.HistoryQuery{
		ChatType: t.ChatType(chatType),
		Target:   targetID,
		Viewer:   ctx.Conn.UserID(),
		Since:    parseUnixMillis(env.Metadata["since"]),
		Until:    parseUnixMillis(env.Metadata["until"]),
		Limit:    limit,
		Offset:   offset,
	}

	rows, err := store.Messages.FetchHistory(q)
	if err != nil {
		return fail(env.Type, "server_error")
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		items = append(items, map[string]interface{}{
			"message_id":   r.MessageID,
			"sender_id":    r.SenderID,
			"content":      base64.StdEncoding.EncodeToString(r.Content),
			"content_type": string(r.ContentType),
			"encrypted":    r.Encrypted,
			"timestamp":    r.Timestamp,
		})
	}

	resp := &proto.Envelope{Type: proto.TagHistoryResponse, Timestamp: ctx.Now, Success: true}
	resp.Metadata = map[string]interface{}{"messages": items}
	return simpleResult(resp)
}
