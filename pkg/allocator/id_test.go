package allocator

import "testing"

func TestIDAllocatorAllocateSkipsAssigned(t *testing.T) {
	a := NewIDAllocator(100, 200, []uint32{100, 101, 102})

	id, ok := a.Allocate()
	if !ok || id != 103 {
		t.Fatalf("Allocate() = (%d, %v), want (103, true)", id, ok)
	}
}

func TestIDAllocatorFreeRewindsCursor(t *testing.T) {
	a := NewIDAllocator(0, 10, nil)
	for i := 0; i < 5; i++ {
		if _, ok := a.Allocate(); !ok {
			t.Fatalf("Allocate() failed at i=%d", i)
		}
	}
	// cursor is now at 5. Freeing 2 should rewind it.
	a.Free(2)
	id, ok := a.Allocate()
	if !ok || id != 2 {
		t.Fatalf("Allocate() after Free(2) = (%d, %v), want (2, true)", id, ok)
	}
}

func TestIDAllocatorExhaustion(t *testing.T) {
	a := NewIDAllocator(0, 1, nil)
	if _, ok := a.Allocate(); !ok {
		t.Fatal("first Allocate() should succeed")
	}
	if _, ok := a.Allocate(); !ok {
		t.Fatal("second Allocate() should succeed")
	}
	if _, ok := a.Allocate(); ok {
		t.Fatal("third Allocate() should fail: range exhausted")
	}
}

func TestIDAllocatorNeverDoubleAllocates(t *testing.T) {
	a := NewIDAllocator(0, 63, nil)
	seen := map[uint32]bool{}
	for i := 0; i < 64; i++ {
		id, ok := a.Allocate()
		if !ok {
			t.Fatalf("Allocate() failed at i=%d", i)
		}
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
	}
	if _, ok := a.Allocate(); ok {
		t.Fatal("expected exhaustion after allocating the full range")
	}
}
