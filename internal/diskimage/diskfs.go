package diskimage

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path"
	"sync"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// DiskfsOpener opens raw disk images through go-diskfs.
type DiskfsOpener struct {
	// SectorSize is assumed when the image does not report a block size.
	SectorSize uint64
}

// OpenImage implements Opener.
func (o DiskfsOpener) OpenImage(imagePath string) (Source, error) {
	d, err := diskfs.Open(imagePath, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, errors.Wrapf(err, "open disk image %s", imagePath)
	}
	utils.LogInfo("disk image opened", map[string]string{"image": imagePath})
	sectorSize := o.SectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	return &diskfsSource{disk: d, path: imagePath, sectorSize: sectorSize}, nil
}

type diskfsSource struct {
	disk       *disk.Disk
	path       string
	sectorSize uint64
}

func (s *diskfsSource) blockSize() uint64 {
	if s.disk.LogicalBlocksize > 0 {
		return uint64(s.disk.LogicalBlocksize)
	}
	return s.sectorSize
}

func (s *diskfsSource) SectorCount() uint64 {
	if s.disk.Size <= 0 {
		return 0
	}
	return uint64(s.disk.Size) / s.blockSize()
}

func (s *diskfsSource) Close() error {
	return s.disk.Close()
}

// EnumerateVolumes reads the image's partition table. A table that cannot be
// read is classified as the expected no-partition-table condition, matching
// the behavior of analyzing a bare filesystem dump.
func (s *diskfsSource) EnumerateVolumes(ctx context.Context) ([]models.VolumeDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := s.disk.GetPartitionTable()
	if err != nil {
		utils.LogWarn("no volume system detected", map[string]string{
			"image": s.path, "reason": err.Error(),
		})
		return nil, ErrNoPartitionTable
	}
	parts := table.GetPartitions()
	if len(parts) == 0 {
		return nil, ErrNoPartitionTable
	}

	bs := s.blockSize()
	vols := make([]models.VolumeDescriptor, 0, len(parts))
	for i, p := range parts {
		start := uint64(0)
		if p.GetStart() > 0 {
			start = uint64(p.GetStart()) / bs
		}
		count := uint64(0)
		if p.GetSize() > 0 {
			count = uint64(p.GetSize()) / bs
		}
		vols = append(vols, models.VolumeDescriptor{
			Slot:        i,
			Description: describePartition(table.Type(), i, p),
			StartSector: start,
			SectorCount: count,
			Flags:       partitionFlags(p),
		})
	}
	utils.LogInfo("volume system enumerated", map[string]string{
		"image": s.path, "type": table.Type(), "volumes": fmt.Sprintf("%d", len(vols)),
	})
	return vols, nil
}

func describePartition(tableType string, index int, p interface{}) string {
	switch part := p.(type) {
	case *mbr.Partition:
		return fmt.Sprintf("MBR partition %d (type 0x%02X)", index, byte(part.Type))
	case *gpt.Partition:
		name := part.Name
		if name == "" {
			name = string(part.Type)
		}
		return fmt.Sprintf("GPT partition %d (%s)", index, name)
	default:
		return fmt.Sprintf("%s partition %d", tableType, index)
	}
}

func partitionFlags(p interface{}) string {
	if part, ok := p.(*mbr.Partition); ok && part.Bootable {
		return "Allocated, Bootable"
	}
	return "Allocated"
}

// OpenFilesystem opens by 1-based partition number (slot+1) or, for offsets,
// by matching the partition that starts at that sector. Offset 0 opens the
// whole image as a single filesystem. The navigation flow only ever produces
// offset 0 or a partition's start sector, so foreign offsets fail with a
// descriptive error rather than guessing.
func (s *diskfsSource) OpenFilesystem(ctx context.Context, req OpenRequest) (Filesystem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	partNum := 0
	switch {
	case req.PartitionIndex != nil:
		partNum = *req.PartitionIndex + 1
	case *req.OffsetSectors == 0:
		partNum = 0
	default:
		vols, err := s.EnumerateVolumes(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve sector offset %d", *req.OffsetSectors)
		}
		found := false
		for _, v := range vols {
			if v.StartSector == *req.OffsetSectors {
				partNum = v.Slot + 1
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Errorf("no partition starts at sector %d", *req.OffsetSectors)
		}
	}

	fs, err := s.disk.GetFilesystem(partNum)
	if err != nil {
		return nil, errors.Wrapf(err, "open filesystem (partition %d)", partNum)
	}
	utils.LogInfo("filesystem opened", map[string]string{
		"image": s.path, "label": typeLabel(fs.Type()),
	})
	return newDiskfsFilesystem(fs), nil
}

func typeLabel(t filesystem.Type) string {
	switch t {
	case filesystem.TypeFat32:
		return "FAT32"
	case filesystem.TypeISO9660:
		return "ISO9660"
	case filesystem.TypeSquashfs:
		return "SquashFS"
	case filesystem.TypeExt4:
		return "ext4"
	default:
		return "Unknown"
	}
}

// diskfsFilesystem adapts a go-diskfs filesystem to the collaborator
// interface. The backend has no inode concept, so inode numbers are a
// deterministic FNV-1a hash of the cleaned absolute path: the same number is
// produced on every independent reopen, which keeps navigation steps
// retryable without retained handles. The path index is a pure cache; a cold
// lookup walks from the root.
type diskfsFilesystem struct {
	fs filesystem.FileSystem

	mu      sync.Mutex
	byInode map[uint64]string
}

func newDiskfsFilesystem(fs filesystem.FileSystem) *diskfsFilesystem {
	f := &diskfsFilesystem{fs: fs, byInode: make(map[uint64]string)}
	f.byInode[pathInode("/")] = "/"
	return f
}

func pathInode(p string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(cleanPath(p)))
	return h.Sum64()
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func (f *diskfsFilesystem) TypeLabel() string {
	return typeLabel(f.fs.Type())
}

func (f *diskfsFilesystem) RootInode() uint64 {
	return pathInode("/")
}

func (f *diskfsFilesystem) ListPath(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = cleanPath(dir)
	infos, err := f.fs.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	entries := make([]Entry, 0, len(infos))
	f.mu.Lock()
	for _, info := range infos {
		child := path.Join(dir, info.Name())
		inode := pathInode(child)
		f.byInode[inode] = child
		entries = append(entries, entryFromInfo(inode, info))
	}
	f.mu.Unlock()
	return entries, nil
}

func (f *diskfsFilesystem) ListInode(ctx context.Context, inode uint64) ([]Entry, error) {
	f.mu.Lock()
	dir, ok := f.byInode[inode]
	f.mu.Unlock()
	if !ok {
		found, err := f.findPath(ctx, inode)
		if err != nil {
			return nil, err
		}
		dir = found
	}
	return f.ListPath(ctx, dir)
}

// findPath resolves an inode by breadth-first walk from the root. Only
// reached when the cache is cold, e.g. after a fresh reopen of the same
// source.
func (f *diskfsFilesystem) findPath(ctx context.Context, inode uint64) (string, error) {
	queue := []string{"/"}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		dir := queue[0]
		queue = queue[1:]
		if pathInode(dir) == inode {
			return dir, nil
		}
		infos, err := f.fs.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, info := range infos {
			if info.Name() == "." || info.Name() == ".." {
				continue
			}
			child := path.Join(dir, info.Name())
			if pathInode(child) == inode {
				if !info.IsDir() {
					return "", errors.Errorf("inode %d is not a directory", inode)
				}
				return child, nil
			}
			if info.IsDir() {
				queue = append(queue, child)
			}
		}
	}
	return "", errors.Errorf("inode %d not found", inode)
}

func entryFromInfo(inode uint64, info os.FileInfo) Entry {
	t := models.EntryTypeRegularFile
	switch {
	case info.IsDir():
		t = models.EntryTypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		t = models.EntryTypeSymbolicLink
	case !info.Mode().IsRegular():
		t = models.EntryTypeOther
	}
	size := uint64(0)
	if info.Size() > 0 {
		size = uint64(info.Size())
	}
	return Entry{
		Inode:     inode,
		Name:      info.Name(),
		Type:      t,
		Mode:      uint32(info.Mode().Perm()),
		ModeKnown: true,
		Size:      size,
		Modified:  info.ModTime(),
	}
}
