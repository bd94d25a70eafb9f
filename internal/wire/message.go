// Package wire defines the realtime messages the server pushes to every
// open session. Each frame is a flat JSON object {type, seq, ...payload}.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"PixelBoard/internal/state"
)

// SeqHeader is the HTTP response header on a full pixel listing that
// carries the sequence number of the last broadcast already reflected in it.
const SeqHeader = "X-Broadcast-Seq"

// Kind names a realtime message type.
type Kind string

const (
	KindUserCount   Kind = "user_count"
	KindPixelUpdate Kind = "pixel_update"
	KindPixelDelete Kind = "pixel_delete"
)

// Message is one realtime broadcast. Only the fields of its Kind are
// serialized.
type Message struct {
	Type Kind
	// Seq is stamped by the hub; 0 means unnumbered.
	Seq uint64

	Count int

	X          int
	Y          int
	Color      string
	InsertedBy string
	UpdatedAt  time.Time
}

// UserCount announces the number of live sessions.
func UserCount(n int) Message {
	return Message{Type: KindUserCount, Count: n}
}

// PixelUpdate announces a successful upsert.
func PixelUpdate(c state.Cell) Message {
	return Message{
		Type:       KindPixelUpdate,
		X:          c.X,
		Y:          c.Y,
		Color:      c.Color,
		InsertedBy: c.InsertedBy,
		UpdatedAt:  c.UpdatedAt,
	}
}

// PixelDelete announces a successful erase.
func PixelDelete(x, y int) Message {
	return Message{Type: KindPixelDelete, X: x, Y: y}
}

// Cell returns the cell carried by a pixel_update.
func (m Message) Cell() state.Cell {
	return state.Cell{
		X:          m.X,
		Y:          m.Y,
		Color:      m.Color,
		InsertedBy: m.InsertedBy,
		UpdatedAt:  m.UpdatedAt,
	}
}

type header struct {
	Type Kind   `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
}

type userCountFrame struct {
	header
	Count int `json:"count"`
}

type pixelUpdateFrame struct {
	header
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Color      string    `json:"color"`
	InsertedBy string    `json:"insertedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type pixelDeleteFrame struct {
	header
	X int `json:"x"`
	Y int `json:"y"`
}

// MarshalJSON emits the flat frame for m.Type.
func (m Message) MarshalJSON() ([]byte, error) {
	h := header{Type: m.Type, Seq: m.Seq}
	switch m.Type {
	case KindUserCount:
		return json.Marshal(userCountFrame{header: h, Count: m.Count})
	case KindPixelUpdate:
		return json.Marshal(pixelUpdateFrame{
			header:     h,
			X:          m.X,
			Y:          m.Y,
			Color:      m.Color,
			InsertedBy: m.InsertedBy,
			UpdatedAt:  m.UpdatedAt,
		})
	case KindPixelDelete:
		return json.Marshal(pixelDeleteFrame{header: h, X: m.X, Y: m.Y})
	default:
		return nil, fmt.Errorf("wire: unknown message type %q", m.Type)
	}
}

// UnmarshalJSON accepts any known frame.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       Kind      `json:"type"`
		Seq        uint64    `json:"seq"`
		Count      int       `json:"count"`
		X          int       `json:"x"`
		Y          int       `json:"y"`
		Color      string    `json:"color"`
		InsertedBy string    `json:"insertedBy"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case KindUserCount, KindPixelUpdate, KindPixelDelete:
	default:
		return fmt.Errorf("wire: unknown message type %q", raw.Type)
	}
	*m = Message{
		Type:       raw.Type,
		Seq:        raw.Seq,
		Count:      raw.Count,
		X:          raw.X,
		Y:          raw.Y,
		Color:      raw.Color,
		InsertedBy: raw.InsertedBy,
		UpdatedAt:  raw.UpdatedAt,
	}
	return nil
}

// Encode marshals m.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a single frame.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
