// SPDX-License-Identifier: MPL-2.0

package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceAndSince(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Time{})
	start := c.Now()
	c.Advance(1500 * time.Millisecond)
	if got := c.Since(start); got != 1500*time.Millisecond {
		t.Errorf("Since() = %v", got)
	}
}

func TestFake_After(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Time{})
	ch := c.After(time.Second)

	select {
	case <-ch:
		t.Fatal("fired before the deadline")
	default:
	}

	c.Advance(999 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(time.Millisecond)
	select {
	case <-ch:
	default:
		t.Fatal("did not fire at the deadline")
	}

	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration must fire immediately")
	}
}

func TestFake_Set(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Time{})
	ch := c.After(time.Hour)
	c.Set(c.Now().Add(2 * time.Hour))
	select {
	case <-ch:
	default:
		t.Fatal("Set past the deadline must release waiters")
	}
}

func TestReal(t *testing.T) {
	t.Parallel()

	var c Clock = Real{}
	if c.Since(c.Now().Add(-time.Second)) < time.Second {
		t.Error("Real.Since is off")
	}
}
