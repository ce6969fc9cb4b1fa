// Package metafile keeps a small record of who bootstrapped an environment
// and when. The record is informational: whether an environment exists is
// always decided by the directory itself, never by this file.
package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulschiretz/venv-bootstrap/pkg/util"
)

// MetaFileName is the name of the record inside the environment directory.
const MetaFileName = ".venv-bootstrap.json"

// MetafileContent holds the contents of the record.
type MetafileContent struct {
	Version      string    `json:"version"`
	Python       string    `json:"python"`
	CreatedUTC   time.Time `json:"createdUTC,omitzero"`
	InstalledUTC time.Time `json:"installedUTC,omitzero"`
	Subprojects  []string  `json:"subprojects,omitempty"`
}

// Write creates or replaces the record in dirPath.
func Write(dirPath string, content *MetafileContent) error {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal meta data: %w", err)
	}
	if err := os.WriteFile(metaFilePath, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not write meta file %s: %w", metaFilePath, err)
	}
	return nil
}

// Read parses the record in dirPath. A missing record is reported with an
// error satisfying os.IsNotExist.
func Read(dirPath string) (MetafileContent, error) {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	metaFile, err := os.Open(metaFilePath)
	if err != nil {
		return MetafileContent{}, err // Return the original error so os.IsNotExist works.
	}
	defer metaFile.Close()

	var content MetafileContent
	if err := json.NewDecoder(metaFile).Decode(&content); err != nil {
		return MetafileContent{}, fmt.Errorf("could not parse metafile %s: %w. It may be corrupt", metaFilePath, err)
	}
	return content, nil
}
