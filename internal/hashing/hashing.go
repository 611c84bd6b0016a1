// Package hashing computes evidence-file digests.
package hashing

import (
	"context"
	"crypto/md5" // #nosec G501 -- MD5 is reported alongside SHA-256 for evidence cross-referencing
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

const bufferSize = 64 * 1024

// Compute calculates MD5 and SHA-256 digests of path in a single read pass.
func Compute(fsys afero.Fs, path string) (*models.FileHashes, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		return nil, errors.Errorf("%s is not a regular file", path)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	md5Hash := md5.New() // #nosec G401
	sha256Hash := sha256.New()
	w := io.MultiWriter(md5Hash, sha256Hash)
	n, err := io.CopyBuffer(w, f, make([]byte, bufferSize))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	utils.LogInfo("hashes calculated", map[string]string{
		"file": path, "bytes": fmt.Sprintf("%d", n),
	})
	return &models.FileHashes{
		Path:   path,
		Size:   uint64(n),
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
	}, nil
}

// Executor adapts Compute to the task dispatcher.
func Executor(fsys afero.Fs) dispatch.ExecutorFunc {
	return func(ctx context.Context, t *dispatch.Task, req dispatch.Request) (dispatch.Result, error) {
		t.Progress(fmt.Sprintf("Calculating hashes for %s...", filepath.Base(req.FilePath)))
		hashes, err := Compute(fsys, req.FilePath)
		if err != nil {
			return dispatch.Result{}, err
		}
		return dispatch.Result{Kind: dispatch.KindHashFile, Hashes: hashes}, nil
	}
}
