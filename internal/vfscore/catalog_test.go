package vfscore

import (
	"path/filepath"
	"testing"
)

func TestPersistentCatalogRecordsAndForgetsVolumes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	cat, err := OpenPersistentCatalog(dir)
	if err != nil {
		t.Fatalf("OpenPersistentCatalog: %v", err)
	}
	defer cat.Close()

	vol := &Volume{ID: 7, Name: "Boot", FSName: "hfsplus"}
	if err := cat.RecordMount(vol); err != nil {
		t.Fatalf("RecordMount: %v", err)
	}

	snap, err := cat.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	entry, ok := snap[7]
	if !ok {
		t.Fatal("expected volume 7 in catalog snapshot")
	}
	if entry.Name != "Boot" || entry.FSName != "hfsplus" {
		t.Fatalf("catalog entry = %+v, want Name=Boot FSName=hfsplus", entry)
	}

	if err := cat.RecordUnmount(7); err != nil {
		t.Fatalf("RecordUnmount: %v", err)
	}
	snap, err = cat.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot after unmount: %v", err)
	}
	if _, ok := snap[7]; ok {
		t.Fatal("expected volume 7 to be removed from the catalog after unmount")
	}
}
