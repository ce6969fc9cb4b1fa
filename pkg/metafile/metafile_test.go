package metafile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestWriteAndReadMetafile(t *testing.T) {
	tempDir := t.TempDir()

	testContent := MetafileContent{
		Version:      "1.0.0",
		Python:       "python3",
		CreatedUTC:   time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		InstalledUTC: time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC),
		Subprojects:  []string{"/src/acme", "/src"},
	}

	if err := Write(tempDir, &testContent); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	readContent, err := Read(tempDir)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if readContent.Version != testContent.Version || readContent.Python != testContent.Python {
		t.Errorf("expected %+v, got %+v", testContent, readContent)
	}
	if !readContent.CreatedUTC.Equal(testContent.CreatedUTC) || !readContent.InstalledUTC.Equal(testContent.InstalledUTC) {
		t.Errorf("timestamps differ: expected %+v, got %+v", testContent, readContent)
	}
	if !reflect.DeepEqual(readContent.Subprojects, testContent.Subprojects) {
		t.Errorf("expected subprojects %v, got %v", testContent.Subprojects, readContent.Subprojects)
	}
}

func TestWriteOmitsZeroTimes(t *testing.T) {
	tempDir := t.TempDir()
	if err := Write(tempDir, &MetafileContent{Version: "dev", Python: "python3"}); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tempDir, MetaFileName))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "installedUTC") {
		t.Errorf("expected zero install time to be omitted, got %s", data)
	}
}

func TestReadNonExistentMetafile(t *testing.T) {
	_, err := Read(t.TempDir())
	if !os.IsNotExist(err) {
		t.Errorf("Expected os.IsNotExist error, got %v", err)
	}
}

func TestReadCorruptMetafile(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, MetaFileName), []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt metafile: %v", err)
	}

	_, err := Read(tempDir)
	if err == nil || !strings.Contains(err.Error(), "could not parse metafile") {
		t.Errorf("Expected error about parsing metafile, got %v", err)
	}
}

func TestWriteMissingDirectory(t *testing.T) {
	if err := Write(filepath.Join(t.TempDir(), "missing"), &MetafileContent{}); err == nil {
		t.Error("expected an error when the directory does not exist")
	}
}
