package donefile

import (
	"testing"

	"github.com/sailbuild/sail/internal/syspath"
)

func TestEncodeIsOrderIndependent(t *testing.T) {
	a := &DoneFile{TaskID: "web#build", Files: []FileFingerprint{
		{Path: "b.ts", Hash: "2"},
		{Path: "a.ts", Hash: "1"},
	}}
	b := &DoneFile{TaskID: "web#build", Files: []FileFingerprint{
		{Path: "a.ts", Hash: "1"},
		{Path: "b.ts", Hash: "2"},
	}}

	ea, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}
	eb, err := b.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(ea) != string(eb) {
		t.Fatalf("expected order-independent encoding, got %q vs %q", ea, eb)
	}
}

func TestHashChangesWithContent(t *testing.T) {
	d1 := &DoneFile{TaskID: "t", Files: []FileFingerprint{{Path: "a", Hash: "1"}}}
	d2 := &DoneFile{TaskID: "t", Files: []FileFingerprint{{Path: "a", Hash: "2"}}}

	h1, err := d1.Hash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := d2.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("expected different content to produce different hashes")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := syspath.AbsoluteSystemPathFromUpstream(t.TempDir())
	path := Path(dir, "web#build")

	d := &DoneFile{TaskID: "web#build", Files: []FileFingerprint{{Path: "src/index.ts", Hash: "abc"}}}
	if err := Write(path, d); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, ok, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !ok {
		t.Fatal("expected the written done-file to be found")
	}
	upToDate, err := IsUpToDate(path, d)
	if err != nil {
		t.Fatalf("IsUpToDate: %v", err)
	}
	if !upToDate {
		t.Fatal("expected freshly written done-file to compare up to date")
	}
	if got.TaskID != "web#build" {
		t.Fatalf("TaskID = %q", got.TaskID)
	}
}

func TestIsUpToDateFalseOnMissing(t *testing.T) {
	dir := syspath.AbsoluteSystemPathFromUpstream(t.TempDir())
	path := Path(dir, "web#build")

	upToDate, err := IsUpToDate(path, &DoneFile{TaskID: "web#build"})
	if err != nil {
		t.Fatalf("IsUpToDate: %v", err)
	}
	if upToDate {
		t.Fatal("expected a missing done-file to report stale")
	}
}

func TestDeleteIgnoresMissing(t *testing.T) {
	dir := syspath.AbsoluteSystemPathFromUpstream(t.TempDir())
	path := Path(dir, "web#build")
	if err := Delete(path); err != nil {
		t.Fatalf("Delete on missing file should be a no-op, got %v", err)
	}
}
