// Package report exports the session's task journal and captured log lines
// as a JSON report in the evidence directory. Porsha is an offline
// workstation tool; reports stay on the host.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/audit"
	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// SessionReport is the exported document.
type SessionReport struct {
	Session     string              `json:"session"`
	GeneratedAt int64               `json:"generated_at"`
	Tasks       []models.TaskRecord `json:"tasks"`
	Logs        []string            `json:"logs"`
}

// Export writes the session report under dir and returns its path.
func Export(ctx context.Context, dir string, journal *audit.Journal, logs []string) (string, error) {
	records, err := journal.List(ctx)
	if err != nil {
		return "", errors.Wrap(err, "collect task records")
	}

	doc := SessionReport{
		Session:     journal.Session(),
		GeneratedAt: time.Now().Unix(),
		Tasks:       records,
		Logs:        logs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal session report")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create report directory %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("porsha-report-%s.json", journal.Session()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write report %s", path)
	}

	utils.LogInfo("session report exported", map[string]string{
		"path": path, "tasks": fmt.Sprintf("%d", len(records)),
	})
	return path, nil
}
