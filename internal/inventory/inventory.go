// Package inventory prepares uploaded software lists for a matching run.
package inventory

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/types"
)

// Normalize fills in Unknown for missing versions and publishers and trims
// every field. Records are copied; the input is left untouched.
func Normalize(records []types.SoftwareRecord) []types.SoftwareRecord {
	out := make([]types.SoftwareRecord, len(records))
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		rec.Version = orUnknown(rec.Version)
		rec.Publisher = orUnknown(rec.Publisher)
		rec.InstallDate = strings.TrimSpace(rec.InstallDate)
		out[i] = rec
	}
	return out
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return types.Unknown
	}
	return s
}

// Validate rejects an inventory that has no named software at all.
// Individual unnamed records are tolerated and skipped during matching.
func Validate(records []types.SoftwareRecord) error {
	for _, rec := range records {
		if strings.TrimSpace(rec.Name) != "" {
			return nil
		}
	}
	return errors.ErrNoInventory
}

// document is the file layout accepted besides a bare list.
type document struct {
	Software []types.SoftwareRecord `json:"software" yaml:"software"`
}

// LoadFile reads a JSON or YAML inventory, either a bare list of records or an
// object with a software list. The format follows the file extension.
func LoadFile(fs afero.Fs, path string) ([]types.SoftwareRecord, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.NewPermanentf("failed to read inventory %s: %w", path, err)
	}

	var records []types.SoftwareRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		records, err = decode(data, yaml.Unmarshal)
	default:
		records, err = decode(data, json.Unmarshal)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: inventory %s: %v", errors.ErrInvalidInput, path, err)
	}

	if err := Validate(records); err != nil {
		return nil, err
	}
	return Normalize(records), nil
}

func decode(data []byte, unmarshal func([]byte, any) error) ([]types.SoftwareRecord, error) {
	var list []types.SoftwareRecord
	listErr := unmarshal(data, &list)
	if listErr == nil {
		return list, nil
	}

	var doc document
	if err := unmarshal(data, &doc); err != nil {
		return nil, listErr
	}
	return doc.Software, nil
}
