package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the frame pushed to clients.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorPayload struct {
	Detail          string `json:"detail"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// Encode marshals payload into an envelope of the given push type.
func Encode(pushType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", pushType, err)
	}
	return json.Marshal(Envelope{Type: pushType, Payload: raw})
}

// ErrorFrame builds an error push. It cannot fail.
func ErrorFrame(detail, clientMessageID string) []byte {
	frame, _ := Encode(PushError, ErrorPayload{Detail: detail, ClientMessageID: clientMessageID})
	return frame
}

// Routing travels next to the payload so receivers can pick local sockets
// without decoding the payload.
type Routing struct {
	RoomID       string
	RecipientIDs []string
	SenderID     string
}

func (r Routing) clone() Routing {
	r.RecipientIDs = append([]string(nil), r.RecipientIDs...)
	return r
}

// JoinIDs and SplitIDs are the wire form of RecipientIDs.
func JoinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func SplitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Message is one broker delivery.
type Message struct {
	ID      string
	Topic   Topic
	Payload []byte
	Routing Routing
}
