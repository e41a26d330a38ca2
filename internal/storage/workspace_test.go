package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
)

// setupWorkspaceStore creates a fresh workspace DB in a temp directory.
func setupWorkspaceStore(t *testing.T) *WorkspaceStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := initWorkspaceDB(dbPath); err != nil {
		t.Fatalf("initWorkspaceDB: %v", err)
	}
	ws, err := OpenWorkspace(dbPath)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sampleSnapshot() models.Snapshot {
	s := graph.New()
	s.AddElement(graph.ElementData{Name: "Rain", Notes: "Water falling from clouds", Tags: []string{"weather"}})
	s.AddElement(graph.ElementData{Name: "Wet Ground", Attributes: map[string]string{"kind": "effect"}})
	s.AddRelationship("Rain", "Wet Ground", "causes", "TO", "physics")
	s.SetRelationshipAttribute("Rain", "Wet Ground", "strength", "high")
	s.CreateFolder("Notes", "")
	s.CreateDocument("Field log", "It rained on the meadow all afternoon.", "Notes")
	s.CreateBoard("Sprint 1", nil, "")
	s.CreateView(models.GraphView{Name: "Weather", Filters: models.ViewFilters{Tags: models.TagFilter{Included: []string{"weather"}}}})
	return s.Snapshot()
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ws := setupWorkspaceStore(t)
	want := sampleSnapshot()

	if err := ws.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := ws.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	ws := setupWorkspaceStore(t)
	if err := ws.Save(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}

	s := graph.New()
	s.AddElement(graph.ElementData{Name: "Only"})
	if err := ws.Save(s.Snapshot()); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := ws.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Elements) != 1 || got.Elements[0].Name != "Only" {
		t.Errorf("Elements = %+v, want only %q", got.Elements, "Only")
	}
	if len(got.Relationships) != 0 || len(got.Documents) != 0 || len(got.Boards) != 0 {
		t.Errorf("stale rows survived: %d relationships, %d documents, %d boards",
			len(got.Relationships), len(got.Documents), len(got.Boards))
	}
}

func TestLoadEmptyWorkspace(t *testing.T) {
	ws := setupWorkspaceStore(t)
	got, err := ws.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Elements) != 0 || got.Version != 0 {
		t.Errorf("expected empty snapshot, got %+v", got)
	}

	// A store loaded from it still has the default view.
	s := graph.New()
	s.Load(got)
	if s.ActiveView().Name != graph.DefaultViewName {
		t.Errorf("ActiveView = %q", s.ActiveView().Name)
	}
}

func TestSearch(t *testing.T) {
	ws := setupWorkspaceStore(t)
	if err := ws.Save(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}

	hits, err := ws.Search("rain*", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var elements, documents int
	for _, h := range hits {
		switch h.Kind {
		case "element":
			elements++
			if h.Title != "Rain" {
				t.Errorf("element hit %q, want Rain", h.Title)
			}
		case "document":
			documents++
			if h.Title != "Field log" {
				t.Errorf("document hit %q, want Field log", h.Title)
			}
		}
	}
	if elements != 1 || documents != 1 {
		t.Errorf("got %d element and %d document hits, want 1 and 1", elements, documents)
	}

	// Hits follow saves: the FTS index is rebuilt with the rows.
	s := graph.New()
	s.AddElement(graph.ElementData{Name: "Sunshine"})
	if err := ws.Save(s.Snapshot()); err != nil {
		t.Fatal(err)
	}
	hits, err = ws.Search("rain*", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("stale hits after save: %+v", hits)
	}

	if hits, _ := ws.Search("   ", 0); hits != nil {
		t.Errorf("blank query returned %+v", hits)
	}
}
