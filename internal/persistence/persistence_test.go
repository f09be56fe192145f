package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kitware/ctest-go/internal/testmodel"
)

func TestLoadCostDataMissingFile(t *testing.T) {
	costs, err := LoadCostData(filepath.Join(t.TempDir(), "no-such-file"))
	if err != nil {
		t.Fatalf("LoadCostData: %v", err)
	}
	if len(costs) != 0 {
		t.Errorf("expected empty map, got %v", costs)
	}
}

func TestAppendThenLoadCostData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost_data")
	want := map[testmodel.ID]float64{1: 1.5, 2: 20, 3: 0.001}

	for id, cost := range want {
		if err := AppendCostSample(path, id, cost); err != nil {
			t.Fatalf("AppendCostSample: %v", err)
		}
	}
	got, err := LoadCostData(path)
	if err != nil {
		t.Fatalf("LoadCostData: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for id, cost := range want {
		if got[id] != cost {
			t.Errorf("cost[%d]=%v, want %v", id, got[id], cost)
		}
	}
}

func TestDeleteCostDataThenLoadIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost_data")
	if err := AppendCostSample(path, 1, 5); err != nil {
		t.Fatalf("AppendCostSample: %v", err)
	}
	if err := DeleteCostData(path); err != nil {
		t.Fatalf("DeleteCostData: %v", err)
	}
	got, err := LoadCostData(path)
	if err != nil {
		t.Fatalf("LoadCostData: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map after delete, got %v", got)
	}
}

func TestDeleteCostDataMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost_data")
	if err := DeleteCostData(path); err != nil {
		t.Errorf("DeleteCostData on missing file: %v", err)
	}
}

func TestLoadCostDataSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost_data")
	writeRaw(t, path, "1 2.5\nnot-a-line\n2\n3 4.0\n")

	got, err := LoadCostData(path)
	if err != nil {
		t.Fatalf("LoadCostData: %v", err)
	}
	if len(got) != 2 || got[1] != 2.5 || got[3] != 4.0 {
		t.Errorf("got %v, want {1:2.5, 3:4.0}", got)
	}
}

func TestCheckpointAppendLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint")

	if err := AppendCheckpoint(path, 1); err != nil {
		t.Fatalf("AppendCheckpoint: %v", err)
	}
	if err := AppendCheckpoint(path, 2); err != nil {
		t.Fatalf("AppendCheckpoint: %v", err)
	}

	ids, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if _, ok := ids[1]; !ok {
		t.Error("expected id 1 in checkpoint")
	}
	if _, ok := ids[2]; !ok {
		t.Error("expected id 2 in checkpoint")
	}
	if len(ids) != 2 {
		t.Errorf("len(ids)=%d, want 2", len(ids))
	}

	if err := RemoveCheckpoint(path); err != nil {
		t.Fatalf("RemoveCheckpoint: %v", err)
	}
	ids, err = LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint after remove: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty checkpoint after remove, got %v", ids)
	}
}

func TestRemoveCheckpointMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint")
	if err := RemoveCheckpoint(path); err != nil {
		t.Errorf("RemoveCheckpoint on missing file: %v", err)
	}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writeRaw: %v", err)
	}
}
