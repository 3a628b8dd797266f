package hashtable

import (
	"encoding/binary"
	"hash/fnv"
	"testing"
)

func uint64Codec() Codec[uint64, uint64] {
	return Codec[uint64, uint64]{
		KeySize:   8,
		ValueSize: 8,
		HashKey: func(k uint64) uint64 {
			h := fnv.New64a()
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], k)
			h.Write(buf[:])
			sum := h.Sum64()
			if sum == 0 {
				sum = 1
			}
			return sum
		},
		KeyEqual:    func(a, b uint64) bool { return a == b },
		EncodeKey:   func(k uint64, b []byte) { binary.LittleEndian.PutUint64(b, k) },
		DecodeKey:   func(b []byte) uint64 { return binary.LittleEndian.Uint64(b) },
		EncodeValue: func(v uint64, b []byte) { binary.LittleEndian.PutUint64(b, v) },
		DecodeValue: func(b []byte) uint64 { return binary.LittleEndian.Uint64(b) },
	}
}

func TestCapacityForcedOdd(t *testing.T) {
	codec := uint64Codec()
	buf := make([]byte, NodeSize(codec)*10) // 10 nodes fit exactly; must be forced to 9
	tbl, err := New(buf, codec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tbl.Capacity()%2 == 0 {
		t.Fatalf("expected odd capacity, got %d", tbl.Capacity())
	}
	if tbl.Capacity() != 9 {
		t.Fatalf("expected capacity 9 from a 10-node buffer, got %d", tbl.Capacity())
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	codec := uint64Codec()
	buf := make([]byte, NodeSize(codec)*101)
	tbl, err := New(buf, codec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := uint64(0); i < 20; i++ {
		if err := tbl.Put(i, i*100); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	for i := uint64(0); i < 20; i++ {
		v, ok := tbl.Get(i)
		if !ok || v != i*100 {
			t.Fatalf("Get(%d) = %d, %v; want %d, true", i, v, ok, i*100)
		}
	}
	if tbl.Len() != 20 {
		t.Fatalf("expected Len()=20, got %d", tbl.Len())
	}
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	codec := uint64Codec()
	buf := make([]byte, NodeSize(codec)*51)
	tbl, _ := New(buf, codec)
	tbl.Put(1, 111)

	if _, ok := tbl.Get(999); ok {
		t.Fatalf("expected miss for key never inserted")
	}
}

func TestKillRemovesEntry(t *testing.T) {
	codec := uint64Codec()
	buf := make([]byte, NodeSize(codec)*51)
	tbl, _ := New(buf, codec)
	tbl.Put(7, 700)

	if !tbl.Kill(7) {
		t.Fatalf("expected Kill to find and remove key 7")
	}
	if _, ok := tbl.Get(7); ok {
		t.Fatalf("key should be absent after Kill")
	}
	if tbl.Kill(7) {
		t.Fatalf("second Kill of the same key should report not found")
	}
}

func TestKillInvokesOnKillHook(t *testing.T) {
	codec := uint64Codec()
	var killed []uint64
	codec.OnKill = func(k uint64) { killed = append(killed, k) }
	buf := make([]byte, NodeSize(codec)*51)
	tbl, _ := New(buf, codec)
	tbl.Put(3, 300)
	tbl.Kill(3)

	if len(killed) != 1 || killed[0] != 3 {
		t.Fatalf("expected OnKill(3) exactly once, got %v", killed)
	}
}

func TestPutOverwritesExistingKey(t *testing.T) {
	codec := uint64Codec()
	buf := make([]byte, NodeSize(codec)*51)
	tbl, _ := New(buf, codec)
	tbl.Put(1, 10)
	tbl.Put(1, 20)

	v, ok := tbl.Get(1)
	if !ok || v != 20 {
		t.Fatalf("expected overwritten value 20, got %d, %v", v, ok)
	}
	if tbl.Len() != 1 {
		t.Fatalf("overwrite should not change Len, got %d", tbl.Len())
	}
}

func TestIterateVisitsAllInUseSlots(t *testing.T) {
	codec := uint64Codec()
	buf := make([]byte, NodeSize(codec)*51)
	tbl, _ := New(buf, codec)
	want := map[uint64]uint64{1: 10, 2: 20, 3: 30}
	for k, v := range want {
		tbl.Put(k, v)
	}

	got := make(map[uint64]uint64)
	tbl.Iterate(func(k, v uint64) bool {
		got[k] = v
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("expected %d entries from Iterate, got %d", len(want), len(got))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("Iterate missing or wrong value for %d: got %d want %d", k, got[k], v)
		}
	}
}
