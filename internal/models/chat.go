package models

// ChatMessage is a single message read from the chat mirror.
type ChatMessage struct {
	ID        interface{} `json:"id"`
	Text      string      `json:"text"`
	Timestamp interface{} `json:"timestamp"`
	UserID    string      `json:"userId"`
}

// ChatData is the monitored view of one chat.
type ChatData struct {
	Messages     []ChatMessage `json:"messages"`
	Participants []string      `json:"participants"`
}

// EmptyChat is returned when a chat cannot be read.
func EmptyChat() *ChatData {
	return &ChatData{Messages: []ChatMessage{}, Participants: []string{}}
}
