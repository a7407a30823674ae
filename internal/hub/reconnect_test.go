package hub_test

import (
	"errors"
	"testing"
	"time"

	"github.com/collabcode/hub-service/internal/domain"
	"github.com/collabcode/hub-service/internal/hub"

	"github.com/google/uuid"
)

func identity(userID int64, name string) domain.Identity {
	return domain.Identity{UserID: userID, Username: name, TokenExpiry: time.Now().Add(time.Hour)}
}

func TestReconnectFreshJoin(t *testing.T) {
	reg := hub.NewRegistry(time.Minute, testLogger())
	tracker := hub.NewTracker(reg, testLogger())

	connID := uuid.New()
	st, superseded, err := tracker.Reconnect(identity(1, "alice"), "R1", connID, 0)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if superseded {
		t.Error("fresh join reported superseded")
	}
	if len(st.Members) != 1 || st.Members[0].ConnID != connID {
		t.Fatalf("members = %v, want just %v", st.Members, connID)
	}
	if st.LastSequence != 0 {
		t.Errorf("LastSequence = %d, want 0 in a new room", st.LastSequence)
	}
}

func TestReconnectSupersedesStaleConnection(t *testing.T) {
	reg := hub.NewRegistry(time.Minute, testLogger())
	tracker := hub.NewTracker(reg, testLogger())

	var closed []uuid.UUID
	tracker.SetStaleCloseFunc(func(connID uuid.UUID) { closed = append(closed, connID) })

	old := uuid.New()
	if _, _, err := tracker.Reconnect(identity(1, "alice"), "R1", old, 0); err != nil {
		t.Fatalf("first Reconnect: %v", err)
	}
	for i := 0; i < 5; i++ {
		reg.NextSequence("R1")
	}

	// транспорт упал, клиент пришёл с новым соединением
	fresh := uuid.New()
	st, superseded, err := tracker.Reconnect(identity(1, "alice"), "R1", fresh, 0)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !superseded {
		t.Fatal("expected superseded=true")
	}
	if len(closed) != 1 || closed[0] != old {
		t.Fatalf("closed = %v, want [%v]", closed, old)
	}
	if len(st.Members) != 1 || st.Members[0].ConnID != fresh {
		t.Fatalf("members = %v, want just the fresh connection", st.Members)
	}
	if st.LastSequence != 5 {
		t.Errorf("LastSequence = %d, want 5 (unchanged by the reconnect)", st.LastSequence)
	}
	if got, ok := reg.FindByUser("R1", 1); !ok || got != fresh {
		t.Fatalf("FindByUser = (%v, %v), want fresh connection", got, ok)
	}
}

func TestReconnectLeavesOtherMembersAlone(t *testing.T) {
	reg := hub.NewRegistry(time.Minute, testLogger())
	tracker := hub.NewTracker(reg, testLogger())

	aOld := uuid.New()
	b := uuid.New()
	tracker.Reconnect(identity(1, "alice"), "R1", aOld, 0)
	tracker.Reconnect(identity(2, "bob"), "R1", b, 0)

	aNew := uuid.New()
	st, _, err := tracker.Reconnect(identity(1, "alice"), "R1", aNew, 0)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if len(st.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(st.Members))
	}
	if got, ok := reg.FindByUser("R1", 2); !ok || got != b {
		t.Fatal("reconnect of alice disturbed bob's membership")
	}
}

func TestReconnectRespectsCapacity(t *testing.T) {
	reg := hub.NewRegistry(time.Minute, testLogger())
	tracker := hub.NewTracker(reg, testLogger())

	tracker.Reconnect(identity(1, "alice"), "R1", uuid.New(), 1)

	_, _, err := tracker.Reconnect(identity(2, "bob"), "R1", uuid.New(), 1)
	if !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("Reconnect = %v, want ErrRoomFull", err)
	}

	// same user reconnecting does not trip the capacity check
	if _, _, err := tracker.Reconnect(identity(1, "alice"), "R1", uuid.New(), 1); err != nil {
		t.Fatalf("same-user reconnect = %v, want nil", err)
	}
}
