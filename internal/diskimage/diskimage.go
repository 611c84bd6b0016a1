// Package diskimage defines the boundary to the disk-forensics collaborator:
// volume enumeration, filesystem opening by partition or offset, and
// directory listing by path or inode. The actual partition-table and
// filesystem interpretation is delegated to an opaque backend.
package diskimage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/models"
)

// ErrNoPartitionTable classifies the expected-absence condition: the image
// has no volume system and should be treated as a single filesystem.
var ErrNoPartitionTable = errors.New("no partition table found")

// OpenError wraps a filesystem open failure so callers can tell it apart
// from a listing failure after a successful open.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return "failed to open filesystem: " + e.Err.Error()
}

func (e *OpenError) Unwrap() error { return e.Err }

// OpenRequest selects the filesystem to open within an image. Exactly one of
// PartitionIndex or OffsetSectors must be set.
type OpenRequest struct {
	PartitionIndex *int
	OffsetSectors  *uint64
}

// Validate enforces the exactly-one precondition. A violating request is a
// caller programming error and must fail before the backend is invoked.
func (r OpenRequest) Validate() error {
	if r.PartitionIndex != nil && r.OffsetSectors != nil {
		return errors.New("provide either a partition index or a sector offset, not both")
	}
	if r.PartitionIndex == nil && r.OffsetSectors == nil {
		return errors.New("provide either a partition index or a sector offset")
	}
	return nil
}

// Entry is one raw directory record as reported by the backend, before
// display shaping.
type Entry struct {
	Inode     uint64
	Name      string
	Type      models.EntryType
	Mode      uint32
	ModeKnown bool
	Size      uint64
	Modified  time.Time
	Accessed  time.Time
	Changed   time.Time
	Created   time.Time
	// IsDeleted is set when the directory entry's name is unallocated,
	// independent of the entry's type.
	IsDeleted bool
}

// Filesystem is an opened interpretation of a byte range as a concrete
// filesystem format.
type Filesystem interface {
	// TypeLabel names the detected filesystem format for display.
	TypeLabel() string
	// RootInode is the inode of the filesystem root directory.
	RootInode() uint64
	// ListPath lists the directory at an absolute path.
	ListPath(ctx context.Context, path string) ([]Entry, error)
	// ListInode lists the directory with the given inode.
	ListInode(ctx context.Context, inode uint64) ([]Entry, error)
}

// Source is an opened disk image.
type Source interface {
	// EnumerateVolumes reads the image's volume system. It returns
	// ErrNoPartitionTable when the image has none.
	EnumerateVolumes(ctx context.Context) ([]models.VolumeDescriptor, error)
	// SectorCount is the approximate image size in native sector units.
	SectorCount() uint64
	// OpenFilesystem opens the filesystem selected by req.
	OpenFilesystem(ctx context.Context, req OpenRequest) (Filesystem, error)
	// Close releases the image.
	Close() error
}

// Opener opens disk images; it is the collaborator factory handed to the
// navigation layer.
type Opener interface {
	OpenImage(path string) (Source, error)
}

// Volumes enumerates src's volume system. When the backend reports that no
// partition table exists, a single synthetic whole-image descriptor is
// produced instead of an error: slot 0, offset 0, spanning the image. Any
// other failure is surfaced unchanged.
func Volumes(ctx context.Context, src Source) ([]models.VolumeDescriptor, error) {
	vols, err := src.EnumerateVolumes(ctx)
	if err != nil {
		if errors.Is(err, ErrNoPartitionTable) {
			return []models.VolumeDescriptor{{
				Slot:        0,
				Description: models.NoPartitionTableDescription,
				StartSector: 0,
				SectorCount: src.SectorCount(),
				Flags:       "N/A",
			}}, nil
		}
		return nil, err
	}
	return vols, nil
}
