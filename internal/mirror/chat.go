package mirror

import (
	"fmt"
	"sort"

	"github.com/campusbuzz/backend/internal/models"
)

// decodeChat converts a Realtime Database value into ChatData. The database
// returns arrays as JSON arrays or, when keys are sparse, as objects keyed by
// index or push id; both shapes are accepted.
func decodeChat(raw interface{}) *models.ChatData {
	chat := models.EmptyChat()
	root, ok := raw.(map[string]interface{})
	if !ok {
		return chat
	}

	for _, v := range listValues(root["messages"]) {
		msg, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		m := models.ChatMessage{
			ID:        msg["id"],
			Timestamp: msg["timestamp"],
		}
		if s, ok := msg["text"].(string); ok {
			m.Text = s
		}
		if s, ok := msg["userId"].(string); ok {
			m.UserID = s
		}
		chat.Messages = append(chat.Messages, m)
	}

	// Participants may also be stored as a set: {"user1": true}.
	if set, ok := root["participants"].(map[string]interface{}); ok && allBool(set) {
		for _, k := range sortedKeys(set) {
			if set[k].(bool) {
				chat.Participants = append(chat.Participants, k)
			}
		}
		return chat
	}
	for _, v := range listValues(root["participants"]) {
		switch p := v.(type) {
		case string:
			chat.Participants = append(chat.Participants, p)
		case nil:
		default:
			chat.Participants = append(chat.Participants, fmt.Sprint(p))
		}
	}
	return chat
}

func listValues(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case map[string]interface{}:
		keys := sortedKeys(t)
		out := make([]interface{}, 0, len(keys))
		for _, k := range keys {
			out = append(out, t[k])
		}
		return out
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func allBool(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if _, ok := v.(bool); !ok {
			return false
		}
	}
	return true
}
