package session

import (
	"testing"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/storage"
)

func setupSession(t *testing.T) *Session {
	t.Helper()
	meta, err := storage.OpenMeta(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMeta: %v", err)
	}
	s := New(meta, graph.New(), nil)
	t.Cleanup(func() {
		s.Close()
		meta.Close()
	})
	for _, name := range []string{"alpha", "beta"} {
		if _, err := meta.CreateWorkspace(name, ""); err != nil {
			t.Fatalf("CreateWorkspace(%s): %v", name, err)
		}
	}
	return s
}

func TestSwitchSavesAndReloads(t *testing.T) {
	s := setupSession(t)

	if _, err := s.Switch("alpha"); err != nil {
		t.Fatalf("Switch(alpha): %v", err)
	}
	s.Store().AddElement(graph.ElementData{Name: "InAlpha"})

	if _, err := s.Switch("beta"); err != nil {
		t.Fatalf("Switch(beta): %v", err)
	}
	if _, ok := s.Store().FindElement("InAlpha"); ok {
		t.Error("beta should not see alpha's element")
	}
	s.Store().AddElement(graph.ElementData{Name: "InBeta"})

	if _, err := s.Switch("alpha"); err != nil {
		t.Fatalf("Switch back to alpha: %v", err)
	}
	if _, ok := s.Store().FindElement("InAlpha"); !ok {
		t.Error("alpha's element was not saved on switch")
	}
	if _, ok := s.Store().FindElement("InBeta"); ok {
		t.Error("alpha should not see beta's element")
	}

	w, ok := s.Current()
	if !ok || w.Name != "alpha" {
		t.Errorf("Current = %+v, %v", w, ok)
	}
}

func TestSwitchErrors(t *testing.T) {
	s := setupSession(t)

	if _, err := s.Switch("missing"); !apperrors.IsNotFound(err) {
		t.Errorf("Switch(missing) err = %v, want not found", err)
	}

	if _, err := s.Meta().ArchiveWorkspace("beta"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Switch("beta"); !apperrors.IsValidation(err) {
		t.Errorf("Switch(archived) err = %v, want validation error", err)
	}
	if _, ok := s.Current(); ok {
		t.Error("failed switches must not activate a workspace")
	}
}

func TestSaveWithoutWorkspace(t *testing.T) {
	s := setupSession(t)
	if err := s.Save(); !apperrors.IsValidation(err) {
		t.Errorf("Save err = %v, want validation error", err)
	}
	if _, err := s.Search("x", 0); !apperrors.IsValidation(err) {
		t.Errorf("Search err = %v, want validation error", err)
	}
}

func TestSaveIsVersionBased(t *testing.T) {
	s := setupSession(t)
	if _, err := s.Switch("alpha"); err != nil {
		t.Fatal(err)
	}
	s.Store().AddElement(graph.ElementData{Name: "Rain"})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved := s.saved
	if saved != s.Store().Version() {
		t.Errorf("saved = %d, want store version %d", saved, s.Store().Version())
	}

	// Unchanged store: nothing to write.
	if err := s.Save(); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if s.saved != saved {
		t.Errorf("saved moved from %d to %d without changes", saved, s.saved)
	}
}

func TestSearchSeesUnsavedChanges(t *testing.T) {
	s := setupSession(t)
	if _, err := s.Switch("alpha"); err != nil {
		t.Fatal(err)
	}
	s.Store().AddElement(graph.ElementData{Name: "Thunder", Notes: "loud"})

	hits, err := s.Search("thunder", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Thunder" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestClearEmptiesStore(t *testing.T) {
	s := setupSession(t)
	if _, err := s.Switch("alpha"); err != nil {
		t.Fatal(err)
	}
	s.Store().AddElement(graph.ElementData{Name: "Rain"})
	s.Clear()

	if _, ok := s.Current(); ok {
		t.Error("Clear should drop the active workspace")
	}
	if len(s.Store().Elements()) != 0 {
		t.Error("Clear should empty the store")
	}

	// Unsaved changes are discarded.
	if _, err := s.Switch("alpha"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Store().FindElement("Rain"); ok {
		t.Error("Clear must not save")
	}
}
