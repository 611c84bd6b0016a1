// Package acquire creates forensic images of disks or device files, hashing
// the content in the same pass as the copy.
package acquire

import (
	"context"
	"crypto/md5" // #nosec G501 -- MD5 accompanies SHA-256 for legacy tool cross-referencing
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

const copyBuffer = 1024 * 1024

// Image copies the source disk or file into a timestamped image under
// outputDir, computing MD5 and SHA-256 while copying. A failed copy removes
// the partial image.
func Image(ctx context.Context, sourcePath, outputDir string, progress func(string)) (*models.AcquiredImage, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, errors.Wrapf(err, "source not found: %s", sourcePath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", outputDir)
	}

	acquiredAt := time.Now()
	imagePath := filepath.Join(outputDir,
		fmt.Sprintf("image_%s_%d.img", filepath.Base(sourcePath), acquiredAt.Unix()))

	source, err := os.Open(sourcePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open source %s", sourcePath)
	}
	defer source.Close()

	image, err := os.Create(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "create image %s", imagePath)
	}

	if progress != nil {
		progress(fmt.Sprintf("Imaging %s...", sourcePath))
	}

	md5Hash := md5.New() // #nosec G401
	sha256Hash := sha256.New()
	w := io.MultiWriter(image, md5Hash, sha256Hash)

	copied, err := copyWithContext(ctx, w, source)
	closeErr := image.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(imagePath); rmErr != nil {
			utils.LogError("failed to remove incomplete image", map[string]string{
				"path": imagePath, "error": rmErr.Error(),
			})
		}
		return nil, errors.Wrapf(err, "copy %s", sourcePath)
	}

	result := &models.AcquiredImage{
		SourcePath: sourcePath,
		ImagePath:  imagePath,
		Size:       uint64(copied),
		MD5:        hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256:     hex.EncodeToString(sha256Hash.Sum(nil)),
		AcquiredAt: acquiredAt.Unix(),
	}
	utils.LogInfo("disk image acquired", map[string]string{
		"source": sourcePath, "image": imagePath, "bytes": fmt.Sprintf("%d", copied),
	})
	return result, nil
}

// copyWithContext copies in bounded chunks, checking for cancellation between
// chunks so a stop request takes effect without waiting for the whole copy.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBuffer)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Executor adapts Image to the task dispatcher.
func Executor() dispatch.ExecutorFunc {
	return func(ctx context.Context, t *dispatch.Task, req dispatch.Request) (dispatch.Result, error) {
		img, err := Image(ctx, req.FilePath, req.OutputDir, t.Progress)
		if err != nil {
			return dispatch.Result{}, err
		}
		return dispatch.Result{Kind: dispatch.KindAcquireDisk, Image: img}, nil
	}
}
