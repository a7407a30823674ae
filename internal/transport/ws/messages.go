package ws

import (
	"encoding/json"
	"fmt"

	"github.com/collabcode/hub-service/internal/domain"
)

// Inbound is the client→server envelope. Payload stays raw until the kind
// is known; unknown kinds are rejected before any payload decoding.
type Inbound struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the server→client envelope.
type Outbound struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId,omitempty"`
	Origin   string `json:"originConnectionId,omitempty"`
	Sequence uint64 `json:"sequenceNumber,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// TypeWarning is outbound-only; it is not part of the relayed event set.
const TypeWarning = "warning"

type WarningPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	warnInvalidEvent = "invalid_event"
	warnNotInRoom    = "not_in_room"
	warnRoomFull     = "room_full"
)

// parseInbound decodes and shape-validates a raw client message into a typed
// event. The returned event carries no origin or sequence yet.
func parseInbound(data []byte) (domain.Event, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}

	ev := domain.Event{Kind: domain.EventKind(in.Type), RoomID: in.RoomID}

	switch ev.Kind {
	case domain.KindCodeChange:
		var p domain.CodeChangePayload
		if err := decode(in.Payload, &p); err != nil {
			return domain.Event{}, err
		}
		if p.Path == "" || len(p.Change) == 0 {
			return domain.Event{}, fmt.Errorf("%w: code_change needs path and change", domain.ErrInvalidEvent)
		}
		ev.Payload = p

	case domain.KindCursorMove:
		var p domain.CursorMovePayload
		if err := decode(in.Payload, &p); err != nil {
			return domain.Event{}, err
		}
		if p.Cursor.Path == "" || p.Cursor.Line < 0 || p.Cursor.Column < 0 {
			return domain.Event{}, fmt.Errorf("%w: bad cursor position", domain.ErrInvalidEvent)
		}
		ev.Payload = p

	case domain.KindTyping:
		var p domain.TypingPayload
		if err := decode(in.Payload, &p); err != nil {
			return domain.Event{}, err
		}
		ev.Payload = p

	case domain.KindFileCreated:
		var p domain.FileCreatedPayload
		if err := decode(in.Payload, &p); err != nil {
			return domain.Event{}, err
		}
		if p.Path == "" {
			return domain.Event{}, fmt.Errorf("%w: file_created needs path", domain.ErrInvalidEvent)
		}
		ev.Payload = p

	case domain.KindFileDeleted:
		var p domain.FileDeletedPayload
		if err := decode(in.Payload, &p); err != nil {
			return domain.Event{}, err
		}
		if p.Path == "" {
			return domain.Event{}, fmt.Errorf("%w: file_deleted needs path", domain.ErrInvalidEvent)
		}
		ev.Payload = p

	case domain.KindFileRenamed:
		var p domain.FileRenamedPayload
		if err := decode(in.Payload, &p); err != nil {
			return domain.Event{}, err
		}
		if p.OldPath == "" || p.NewPath == "" {
			return domain.Event{}, fmt.Errorf("%w: file_renamed needs both paths", domain.ErrInvalidEvent)
		}
		ev.Payload = p

	case domain.KindRoomJoined:
		if in.RoomID == "" {
			return domain.Event{}, fmt.Errorf("%w: room_joined needs roomId", domain.ErrInvalidEvent)
		}

	case domain.KindRoomLeft:
		// no payload

	case domain.KindUserJoined, domain.KindUserLeft:
		// server-originated kinds, clients may not send them
		return domain.Event{}, fmt.Errorf("%w: %s is server-originated", domain.ErrInvalidEvent, ev.Kind)

	default:
		return domain.Event{}, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, in.Type)
	}

	return ev, nil
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", domain.ErrInvalidEvent)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}

	return nil
}

func outboundFromEvent(ev domain.Event) Outbound {
	return Outbound{
		Type:     string(ev.Kind),
		RoomID:   ev.RoomID,
		Origin:   ev.Origin.String(),
		Sequence: ev.Seq,
		Payload:  ev.Payload,
	}
}
