package signaling

import "testing"

type nopSender struct{}

func (nopSender) Send([]byte) bool { return true }

func TestConnectionRegistry_RegisterAndLookup(t *testing.T) {
	r := NewConnectionRegistry(testLogger())

	conn := NewConnection("c1", nopSender{})
	if err := r.Register(conn); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, ok := r.Lookup("c1")
	if !ok || got != conn {
		t.Fatalf("lookup = (%v, %v)", got, ok)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestConnectionRegistry_DoubleRegisterPreservesExisting(t *testing.T) {
	r := NewConnectionRegistry(testLogger())

	first := NewConnection("c1", nopSender{})
	if err := r.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(NewConnection("c1", nopSender{})); err == nil {
		t.Fatalf("double register succeeded")
	}
	got, _ := r.Lookup("c1")
	if got != first {
		t.Fatalf("existing entry was replaced")
	}
}

func TestConnectionRegistry_SetRoomAndRemove(t *testing.T) {
	r := NewConnectionRegistry(testLogger())
	conn := NewConnection("c1", nopSender{})
	_ = r.Register(conn)

	r.SetRoom("c1", "room-1")
	if conn.RoomID != "room-1" {
		t.Fatalf("room id = %q", conn.RoomID)
	}
	r.SetRoom("missing", "room-1")

	r.Remove("c1")
	if _, ok := r.Lookup("c1"); ok {
		t.Fatalf("connection survived removal")
	}
	r.Remove("c1")
	if r.Count() != 0 {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestRoomRegistry_EnsureIsIdempotent(t *testing.T) {
	r := NewRoomRegistry()

	room, created := r.EnsureRoom("room-1")
	if !created || room.ID != "room-1" {
		t.Fatalf("first ensure = (%v, %v)", room, created)
	}
	again, created := r.EnsureRoom("room-1")
	if created || again != room {
		t.Fatalf("second ensure created a new room")
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestRoomRegistry_AddMemberIdempotent(t *testing.T) {
	r := NewRoomRegistry()
	r.EnsureRoom("room-1")

	if !r.AddMember("room-1", "c1") {
		t.Fatalf("first add reported not new")
	}
	if r.AddMember("room-1", "c1") {
		t.Fatalf("second add reported new")
	}
	if r.AddMember("missing", "c1") {
		t.Fatalf("add to missing room succeeded")
	}

	room, _ := r.Lookup("room-1")
	if room.MemberCount() != 1 {
		t.Fatalf("member count = %d", room.MemberCount())
	}
}

func TestRoomRegistry_RemoveMemberDeletesEmptiedRoom(t *testing.T) {
	r := NewRoomRegistry()
	r.EnsureRoom("room-1")
	r.AddMember("room-1", "c1")
	r.AddMember("room-1", "c2")

	removed, deleted := r.RemoveMember("room-1", "c1")
	if !removed || deleted {
		t.Fatalf("first remove = (%v, %v)", removed, deleted)
	}
	removed, deleted = r.RemoveMember("room-1", "c2")
	if !removed || !deleted {
		t.Fatalf("last remove = (%v, %v)", removed, deleted)
	}
	if _, ok := r.Lookup("room-1"); ok {
		t.Fatalf("empty room still present")
	}

	removed, deleted = r.RemoveMember("room-1", "c2")
	if removed || deleted {
		t.Fatalf("remove from deleted room = (%v, %v)", removed, deleted)
	}
}

func TestRoomRegistry_AllSortedByID(t *testing.T) {
	r := NewRoomRegistry()
	r.EnsureRoom("zulu")
	r.EnsureRoom("alpha")
	r.AddMember("zulu", "c1")
	r.AddMember("alpha", "c2")

	rooms := r.All()
	if len(rooms) != 2 || rooms[0].ID != "alpha" || rooms[1].ID != "zulu" {
		t.Fatalf("rooms = %v", rooms)
	}
}

func TestRoom_MemberIDsSorted(t *testing.T) {
	r := NewRoomRegistry()
	r.EnsureRoom("room-1")
	r.AddMember("room-1", "charlie")
	r.AddMember("room-1", "alice")
	r.AddMember("room-1", "bob")

	room, _ := r.Lookup("room-1")
	ids := room.MemberIDs()
	if len(ids) != 3 || ids[0] != "alice" || ids[1] != "bob" || ids[2] != "charlie" {
		t.Fatalf("ids = %v", ids)
	}
}
