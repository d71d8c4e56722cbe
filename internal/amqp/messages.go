package amqp

import (
	"encoding/json"
	"time"
)

// Session change actions.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// SessionChangedMessage tells the mirror worker that a session or one of its
// purchases or products changed. The worker reloads everything it needs from
// the database, so the message only carries the session id.
type SessionChangedMessage struct {
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSessionChangedMessage(sessionID, action string, version int64) *SessionChangedMessage {
	return &SessionChangedMessage{
		SessionID: sessionID,
		Action:    action,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *SessionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SessionChangedMessageFromJSON(data []byte) (*SessionChangedMessage, error) {
	var msg SessionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Action == "" {
		msg.Action = ActionUpsert
	}
	return &msg, nil
}
