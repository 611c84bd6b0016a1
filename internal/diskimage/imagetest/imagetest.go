// Package imagetest provides a scripted in-memory disk-image collaborator
// for exercising the navigation workflow without real images.
package imagetest

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/diskimage"
	"github.com/Ashfaaq98/porsha/internal/models"
)

// Filesystem is a scripted filesystem: directories keyed by inode.
type Filesystem struct {
	Label string
	Root  uint64
	// Dirs maps a directory inode to its raw entries.
	Dirs map[uint64][]diskimage.Entry
	// Paths maps cleaned absolute paths to directory inodes.
	Paths map[string]uint64
	// ListErr fails every listing when set.
	ListErr error
}

// Image is a scripted disk image. Zero partitions with NoPartitionTable set
// models a bare filesystem dump.
type Image struct {
	Sectors          uint64
	Volumes          []models.VolumeDescriptor
	NoPartitionTable bool
	EnumerateErr     error

	// ByPartition maps partition slots to filesystems; Whole backs offset 0.
	ByPartition map[int]*Filesystem
	Whole       *Filesystem
	// OpenErr fails every open when set.
	OpenErr error

	EnumerateCalls atomic.Int32
	OpenCalls      atomic.Int32
}

// OpenImage implements diskimage.Opener for a fixed image regardless of path.
func (im *Image) OpenImage(path string) (diskimage.Source, error) {
	return &source{image: im}, nil
}

type source struct {
	image *Image
}

func (s *source) SectorCount() uint64 { return s.image.Sectors }

func (s *source) Close() error { return nil }

func (s *source) EnumerateVolumes(ctx context.Context) ([]models.VolumeDescriptor, error) {
	s.image.EnumerateCalls.Add(1)
	if s.image.EnumerateErr != nil {
		return nil, s.image.EnumerateErr
	}
	if s.image.NoPartitionTable {
		return nil, diskimage.ErrNoPartitionTable
	}
	return s.image.Volumes, nil
}

func (s *source) OpenFilesystem(ctx context.Context, req diskimage.OpenRequest) (diskimage.Filesystem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.image.OpenCalls.Add(1)
	if s.image.OpenErr != nil {
		return nil, s.image.OpenErr
	}
	if req.OffsetSectors != nil {
		if *req.OffsetSectors == 0 && s.image.Whole != nil {
			return &fsView{fs: s.image.Whole}, nil
		}
		return nil, errors.Errorf("no filesystem at sector offset %d", *req.OffsetSectors)
	}
	fs, ok := s.image.ByPartition[*req.PartitionIndex]
	if !ok {
		return nil, errors.Errorf("no filesystem in partition %d", *req.PartitionIndex)
	}
	return &fsView{fs: fs}, nil
}

type fsView struct {
	fs *Filesystem
}

func (v *fsView) TypeLabel() string { return v.fs.Label }

func (v *fsView) RootInode() uint64 { return v.fs.Root }

func (v *fsView) ListPath(ctx context.Context, path string) ([]diskimage.Entry, error) {
	if v.fs.ListErr != nil {
		return nil, v.fs.ListErr
	}
	inode, ok := v.fs.Paths[path]
	if !ok {
		return nil, errors.Errorf("directory %s not found", path)
	}
	return v.ListInode(ctx, inode)
}

func (v *fsView) ListInode(ctx context.Context, inode uint64) ([]diskimage.Entry, error) {
	if v.fs.ListErr != nil {
		return nil, v.fs.ListErr
	}
	entries, ok := v.fs.Dirs[inode]
	if !ok {
		return nil, errors.Errorf("inode %d not found", inode)
	}
	return entries, nil
}
