package storage

import "testing"

func TestMemoryStoreSaveLoad(t *testing.T) {
	s := NewMemoryStore()
	p := sampleProgram("mem")
	if err := s.SaveProgram(p); err != nil {
		t.Fatalf("SaveProgram: %v", err)
	}
	loaded, err := s.LoadProgram("mem")
	if err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if len(loaded.Nodes) != len(p.Nodes) {
		t.Fatalf("loaded %d nodes, want %d", len(loaded.Nodes), len(p.Nodes))
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.LoadProgram("missing"); err == nil {
		t.Fatal("expected NotFound error")
	} else if se, ok := err.(*Error); !ok || se.Kind != NotFound {
		t.Fatalf("expected *Error{Kind: NotFound}, got %#v", err)
	}
}

func TestMemoryStoreEditLogAndCheckpoints(t *testing.T) {
	s := NewMemoryStore()
	if err := s.AppendEditLogEntry("p", EditLogEntry{Agent: "a1", Description: "first"}); err != nil {
		t.Fatalf("AppendEditLogEntry: %v", err)
	}
	if err := s.AppendEditLogEntry("p", EditLogEntry{Agent: "a1", Description: "second"}); err != nil {
		t.Fatalf("AppendEditLogEntry: %v", err)
	}
	entries, err := s.ListEditLog("p")
	if err != nil {
		t.Fatalf("ListEditLog: %v", err)
	}
	if len(entries) != 2 || entries[0].Index != 0 || entries[1].Index != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := s.SaveCheckpoint("p", "cp1", 1); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	cps, err := s.ListCheckpoints("p")
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if cps["cp1"] != 1 {
		t.Fatalf("checkpoint cp1 = %d, want 1", cps["cp1"])
	}
}

func TestMemoryStoreAgentConfigs(t *testing.T) {
	s := NewMemoryStore()
	cfg := AgentConfig{ID: "a1", DisplayName: "Agent One"}
	if err := s.SaveAgentConfig(cfg); err != nil {
		t.Fatalf("SaveAgentConfig: %v", err)
	}
	loaded, err := s.LoadAgentConfig("a1")
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	if loaded.DisplayName != "Agent One" {
		t.Fatalf("DisplayName = %q", loaded.DisplayName)
	}
	if err := s.DeleteAgentConfig("a1"); err != nil {
		t.Fatalf("DeleteAgentConfig: %v", err)
	}
	if _, err := s.LoadAgentConfig("a1"); err == nil {
		t.Fatal("expected error after delete")
	}
}
