package concurrency

import (
	"testing"
	"time"

	"github.com/snowdamiz/lmlang/graph"
)

func TestAcquireReleaseAcquire(t *testing.T) {
	m := New(nil)
	a := AgentId("agent-a")
	b := AgentId("agent-b")

	if err := m.Acquire(a, []graph.FunctionId{1}, Write, time.Minute); err != nil {
		t.Fatalf("a acquire: %v", err)
	}
	if err := m.Acquire(b, []graph.FunctionId{2}, Write, time.Minute); err != nil {
		t.Fatalf("b acquire different function: %v", err)
	}

	if err := m.Acquire(b, []graph.FunctionId{1}, Write, time.Minute); err == nil {
		t.Fatalf("expected conflict acquiring function held by a")
	}

	m.Release(a, []graph.FunctionId{1})
	if err := m.Acquire(b, []graph.FunctionId{1}, Write, time.Minute); err != nil {
		t.Fatalf("b should acquire after a released: %v", err)
	}
}

func TestSharedReadLocks(t *testing.T) {
	m := New(nil)
	a, b := AgentId("a"), AgentId("b")
	if err := m.Acquire(a, []graph.FunctionId{5}, Read, time.Minute); err != nil {
		t.Fatalf("a read: %v", err)
	}
	if err := m.Acquire(b, []graph.FunctionId{5}, Read, time.Minute); err != nil {
		t.Fatalf("b read should be shared: %v", err)
	}
	if err := m.Acquire(b, []graph.FunctionId{5}, Write, time.Minute); err == nil {
		t.Fatalf("write should conflict with an existing read holder")
	}
}

func TestTTLExpirySweep(t *testing.T) {
	m := New(nil)
	a := AgentId("a")
	if err := m.Acquire(a, []graph.FunctionId{9}, Write, time.Millisecond); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	removed := m.Sweep(time.Now().Add(time.Second))
	if removed != 1 {
		t.Fatalf("expected 1 expired lock removed, got %d", removed)
	}
	if m.Holds(a, 9, Read) {
		t.Fatalf("expired lock should no longer be held")
	}
}

func TestHoldsWriteImpliesRead(t *testing.T) {
	m := New(nil)
	a := AgentId("a")
	m.Acquire(a, []graph.FunctionId{1}, Write, time.Minute)
	if !m.Holds(a, 1, Read) {
		t.Fatalf("a write lock should satisfy a read check")
	}
	if !m.Holds(a, 1, Write) {
		t.Fatalf("a write lock should satisfy a write check")
	}
}
