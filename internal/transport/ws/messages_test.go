package ws

import (
	"errors"
	"testing"

	"github.com/collabcode/hub-service/internal/domain"
)

func TestParseInbound_CodeChange(t *testing.T) {
	data := []byte(`{"type":"code_change","roomId":"R1","payload":{"path":"main.go","change":{"from":1,"to":5,"text":"x"}}}`)
	ev, err := parseInbound(data)
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if ev.Kind != domain.KindCodeChange {
		t.Errorf("Kind = %v", ev.Kind)
	}
	p, ok := ev.Payload.(domain.CodeChangePayload)
	if !ok {
		t.Fatalf("payload type %T", ev.Payload)
	}
	if p.Path != "main.go" || len(p.Change) == 0 {
		t.Errorf("payload = %+v", p)
	}
}

func TestParseInbound_CursorMove(t *testing.T) {
	data := []byte(`{"type":"cursor_move","payload":{"cursor":{"path":"a.go","line":3,"column":14}}}`)
	ev, err := parseInbound(data)
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	p := ev.Payload.(domain.CursorMovePayload)
	if p.Cursor.Line != 3 || p.Cursor.Column != 14 {
		t.Errorf("cursor = %+v", p.Cursor)
	}
}

func TestParseInbound_FileRenamed(t *testing.T) {
	data := []byte(`{"type":"file_renamed","payload":{"old_path":"a.go","new_path":"b.go"}}`)
	ev, err := parseInbound(data)
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	p := ev.Payload.(domain.FileRenamedPayload)
	if p.OldPath != "a.go" || p.NewPath != "b.go" {
		t.Errorf("payload = %+v", p)
	}
}

func TestParseInbound_UnknownKind(t *testing.T) {
	_, err := parseInbound([]byte(`{"type":"unknown_kind","payload":{}}`))
	if !errors.Is(err, domain.ErrUnknownEvent) {
		t.Fatalf("err = %v, want ErrUnknownEvent", err)
	}
}

func TestParseInbound_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":              `{{{`,
		"missing path":          `{"type":"code_change","payload":{"change":{}}}`,
		"missing change":        `{"type":"code_change","payload":{"path":"main.go"}}`,
		"negative line":         `{"type":"cursor_move","payload":{"cursor":{"path":"a.go","line":-1,"column":0}}}`,
		"no payload":            `{"type":"file_created"}`,
		"empty rename":          `{"type":"file_renamed","payload":{"old_path":"","new_path":"b.go"}}`,
		"join without room":     `{"type":"room_joined"}`,
		"server-only kind":      `{"type":"user_joined","payload":{"user_id":1}}`,
		"server-only user_left": `{"type":"user_left","payload":{}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseInbound([]byte(raw)); !errors.Is(err, domain.ErrInvalidEvent) {
				t.Fatalf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestParseInbound_RoomControl(t *testing.T) {
	ev, err := parseInbound([]byte(`{"type":"room_joined","roomId":"R2"}`))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if ev.Kind != domain.KindRoomJoined || ev.RoomID != "R2" {
		t.Errorf("event = %+v", ev)
	}

	if _, err := parseInbound([]byte(`{"type":"room_left"}`)); err != nil {
		t.Fatalf("room_left: %v", err)
	}
}
