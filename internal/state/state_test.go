package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func TestAppendPersistsImmediately(t *testing.T) {
	path := statePath(t)
	st := New(path, 42, nil)

	if err := st.Append(0); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := st.Append(1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	var f struct {
		Seed               int64 `json:"seed"`
		AccumulatedResults []int `json:"accumulated_results"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("state file not valid JSON: %v", err)
	}
	if f.Seed != 42 {
		t.Fatalf("seed = %d, want 42", f.Seed)
	}
	if len(f.AccumulatedResults) != 2 || f.AccumulatedResults[0] != 0 || f.AccumulatedResults[1] != 1 {
		t.Fatalf("accumulated_results = %v, want [0 1]", f.AccumulatedResults)
	}
}

func TestLoadReplaysHistory(t *testing.T) {
	path := statePath(t)
	st := New(path, 7, nil)
	for _, v := range []int{0, 1, 125} {
		if err := st.Append(v); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Seed() != 7 {
		t.Fatalf("Seed = %d, want 7", loaded.Seed())
	}
	for i, want := range []int{0, 1, 125} {
		got, ok, err := loaded.NextReplay()
		if err != nil {
			t.Fatalf("NextReplay %d failed: %v", i, err)
		}
		if !ok || got != want {
			t.Fatalf("NextReplay %d = (%d, %v), want (%d, true)", i, got, ok, want)
		}
	}
	if loaded.Replaying() {
		t.Fatalf("history should be exhausted")
	}
	if _, ok, _ := loaded.NextReplay(); ok {
		t.Fatalf("NextReplay after exhaustion should report no entry")
	}
}

func TestReplayKeepsFileComplete(t *testing.T) {
	path := statePath(t)
	st := New(path, 7, nil)
	for _, v := range []int{0, 1} {
		if err := st.Append(v); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, _, err := loaded.NextReplay(); err != nil {
		t.Fatalf("NextReplay failed: %v", err)
	}
	if _, _, err := loaded.NextReplay(); err != nil {
		t.Fatalf("NextReplay failed: %v", err)
	}

	reloaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	n := 0
	for reloaded.Replaying() {
		if _, _, err := reloaded.NextReplay(); err != nil {
			t.Fatalf("NextReplay failed: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("replayed %d entries after full replay cycle, want 2", n)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := statePath(t)
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	_, err := Load(path, nil)
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Load = %v, want CorruptError", err)
	}
}

func TestLoadRejectsMissingKeys(t *testing.T) {
	cases := map[string]string{
		"no seed":    `{"accumulated_results": [0, 1]}`,
		"no results": `{"seed": 3}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := statePath(t)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write state: %v", err)
			}
			_, err := Load(path, nil)
			var corrupt *CorruptError
			if !errors.As(err, &corrupt) {
				t.Fatalf("Load = %v, want CorruptError", err)
			}
		})
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	path := statePath(t)
	st := New(path, 1, nil)
	if err := st.Append(0); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".state-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFinishRemoves(t *testing.T) {
	path := statePath(t)
	st := New(path, 1, nil)
	if err := st.Append(0); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := st.Finish(true); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("state file should be removed")
	}
}

func TestFinishArchives(t *testing.T) {
	path := statePath(t)
	st := New(path, 1, nil)
	if err := st.Append(0); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := st.Finish(false); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("state file should have been renamed aside")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "state.json.completed.") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no archived state file found")
	}
}

func TestFinishWithoutStateFile(t *testing.T) {
	st := New(statePath(t), 1, nil)
	if err := st.Finish(false); err != nil {
		t.Fatalf("Finish on never-written state failed: %v", err)
	}
}
