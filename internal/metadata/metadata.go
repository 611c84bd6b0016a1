// Package metadata extracts display-ready metadata from evidence files:
// general file attributes for every file, plus format-specific fields for
// Apple property lists.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// sniffLen bounds how much of the file is read for content-type detection.
const sniffLen = 512

// Extract reads path and returns sorted key/value metadata fields. Files
// whose format-specific details cannot be parsed degrade to the general
// attributes with an informational note.
func Extract(fsys afero.Fs, path string) ([]models.MetadataField, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	fields := []models.MetadataField{
		{Key: "File Name", Value: info.Name()},
		{Key: "File Size", Value: fmt.Sprintf("%d", info.Size())},
		{Key: "Mode", Value: info.Mode().String()},
		{Key: "Modified", Value: utils.FormatTimestamp(info.ModTime())},
		{Key: "Content Type", Value: detectContentType(data)},
	}

	if isPlist(path, data) {
		fields = append(fields, plistFields(data)...)
	}

	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Key < fields[j].Key
	})
	utils.LogInfo("metadata extracted", map[string]string{
		"file": path, "fields": fmt.Sprintf("%d", len(fields)),
	})
	return fields, nil
}

func detectContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return http.DetectContentType(data)
}

func isPlist(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".plist") {
		return true
	}
	if bytes.HasPrefix(data, []byte("bplist00")) {
		return true
	}
	return bytes.Contains(data[:min(len(data), sniffLen)], []byte("<plist"))
}

// plistFields decodes the top-level dictionary of a property list. Scalar
// values become fields directly; compound values are summarized by size.
func plistFields(data []byte) []models.MetadataField {
	var doc map[string]interface{}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return []models.MetadataField{{
			Key:   "Info",
			Value: "Property list could not be parsed: " + err.Error(),
		}}
	}

	fields := make([]models.MetadataField, 0, len(doc)+1)
	fields = append(fields, models.MetadataField{
		Key: "Plist Keys", Value: fmt.Sprintf("%d", len(doc)),
	})
	for key, value := range doc {
		fields = append(fields, models.MetadataField{
			Key:   "Plist " + titleCase(key),
			Value: renderValue(value),
		})
	}
	return fields
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool, int64, uint64, float64:
		return fmt.Sprintf("%v", val)
	case []interface{}:
		return fmt.Sprintf("(%d items)", len(val))
	case map[string]interface{}:
		return fmt.Sprintf("(%d keys)", len(val))
	case []byte:
		return fmt.Sprintf("(%d bytes)", len(val))
	default:
		return fmt.Sprintf("%v", val)
	}
}

// titleCase turns separators into spaces and capitalizes each word.
func titleCase(key string) string {
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Executor adapts Extract to the task dispatcher.
func Executor(fsys afero.Fs) dispatch.ExecutorFunc {
	return func(ctx context.Context, t *dispatch.Task, req dispatch.Request) (dispatch.Result, error) {
		t.Progress(fmt.Sprintf("Extracting metadata for %s...", filepath.Base(req.FilePath)))
		fields, err := Extract(fsys, req.FilePath)
		if err != nil {
			return dispatch.Result{}, err
		}
		return dispatch.Result{Kind: dispatch.KindExtractMetadata, Fields: fields}, nil
	}
}
