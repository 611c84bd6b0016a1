package disknav

import (
	"context"
	"fmt"
	"path"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/diskimage"
	"github.com/Ashfaaq98/porsha/internal/dispatch"
)

// NewExecutor returns the dispatcher executor for disk tasks. A list task is
// a two-step pipeline with a single terminal outcome: the filesystem is
// reopened from scratch using only the request's partition or offset, then
// the directory is listed. Handles are never retained across tasks.
func NewExecutor(opener diskimage.Opener) dispatch.ExecutorFunc {
	return func(ctx context.Context, t *dispatch.Task, req dispatch.Request) (dispatch.Result, error) {
		t.Progress(fmt.Sprintf("Starting disk task: %s...", req.Kind))

		src, err := opener.OpenImage(req.ImagePath)
		if err != nil {
			return dispatch.Result{}, errors.Wrap(err, "open disk image")
		}
		defer src.Close()

		switch req.Kind {
		case dispatch.KindEnumerateVolumes:
			return enumerateVolumes(ctx, t, src)
		case dispatch.KindOpenFilesystem:
			return openFilesystem(ctx, src, req)
		case dispatch.KindListDirectory:
			return listDirectory(ctx, t, src, req)
		default:
			return dispatch.Result{}, errors.Errorf("unknown disk task: %s", req.Kind)
		}
	}
}

func openRequest(req dispatch.Request) diskimage.OpenRequest {
	return diskimage.OpenRequest{
		PartitionIndex: req.PartitionIndex,
		OffsetSectors:  req.OffsetSectors,
	}
}

func enumerateVolumes(ctx context.Context, t *dispatch.Task, src diskimage.Source) (dispatch.Result, error) {
	t.Progress("Reading volume information...")
	vols, err := diskimage.Volumes(ctx, src)
	if err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Result{Kind: dispatch.KindEnumerateVolumes, Volumes: vols}, nil
}

func openFilesystem(ctx context.Context, src diskimage.Source, req dispatch.Request) (dispatch.Result, error) {
	fs, err := src.OpenFilesystem(ctx, openRequest(req))
	if err != nil {
		return dispatch.Result{}, &diskimage.OpenError{Err: err}
	}
	return dispatch.Result{
		Kind: dispatch.KindOpenFilesystem,
		Open: &dispatch.OpenResult{Success: true, Label: fs.TypeLabel()},
	}, nil
}

func listDirectory(ctx context.Context, t *dispatch.Task, src diskimage.Source, req dispatch.Request) (dispatch.Result, error) {
	t.Progress("Opening filesystem before listing...")
	fs, err := src.OpenFilesystem(ctx, openRequest(req))
	if err != nil {
		return dispatch.Result{}, &diskimage.OpenError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return dispatch.Result{}, err
	}
	t.Progress(fmt.Sprintf("Filesystem opened (FS Type: %s). Listing directory...", fs.TypeLabel()))

	var raw []diskimage.Entry
	atRoot := false
	if req.Inode != nil {
		// Inode navigation takes precedence over path whenever both are set.
		raw, err = fs.ListInode(ctx, *req.Inode)
		atRoot = *req.Inode == fs.RootInode()
	} else {
		p := req.Path
		if p == "" {
			p = "/"
		}
		raw, err = fs.ListPath(ctx, p)
		atRoot = path.Clean("/"+p) == "/"
	}
	if err != nil {
		return dispatch.Result{}, errors.Wrap(err, "list directory")
	}

	return dispatch.Result{
		Kind:    dispatch.KindListDirectory,
		Open:    &dispatch.OpenResult{Success: true, Label: fs.TypeLabel()},
		Entries: diskimage.ShapeListing(raw, atRoot),
	}, nil
}
