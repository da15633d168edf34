package clockid

import "testing"

func TestIDAllocatorStrictlyIncreasing(t *testing.T) {
	a := NewIDAllocator(0)
	prev := a.Next()
	for i := 0; i < 1000; i++ {
		next := a.Next()
		if next <= prev {
			t.Fatalf("id allocator produced non-increasing sequence: %d then %d", prev, next)
		}
		prev = next
	}
}

func TestIDAllocatorResumesAfterLast(t *testing.T) {
	a := NewIDAllocator(500)
	if got := a.Next(); got <= 500 {
		t.Fatalf("expected id greater than seeded last id 500, got %d", got)
	}
}

func TestClockMonotonicMillisNonDecreasing(t *testing.T) {
	c := NewClock()
	prev := c.MonotonicMillis()
	for i := 0; i < 5; i++ {
		next := c.MonotonicMillis()
		if next < prev {
			t.Fatalf("monotonic clock moved backward: %d then %d", prev, next)
		}
		prev = next
	}
}
