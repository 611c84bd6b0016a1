package dispatch

import (
	"github.com/pkg/errors"
)

// Kind names one of the closed set of background operations.
type Kind int

// Task kinds. The disk kinds drive the navigation workflow; the remaining
// kinds back the other analysis commands.
const (
	KindEnumerateVolumes Kind = iota
	KindOpenFilesystem
	KindListDirectory
	KindHashFile
	KindExtractMetadata
	KindAnalyzeCapture
	KindAcquireDisk
)

func (k Kind) String() string {
	switch k {
	case KindEnumerateVolumes:
		return "enumerate_volumes"
	case KindOpenFilesystem:
		return "open_filesystem"
	case KindListDirectory:
		return "list_directory"
	case KindHashFile:
		return "hash_file"
	case KindExtractMetadata:
		return "extract_metadata"
	case KindAnalyzeCapture:
		return "analyze_capture"
	case KindAcquireDisk:
		return "acquire_disk"
	default:
		return "unknown"
	}
}

// Request is the parameter bag of a task. Which fields are required depends
// on the kind; Validate checks them before any work is scheduled.
type Request struct {
	Kind Kind

	// Disk tasks.
	ImagePath      string
	PartitionIndex *int
	OffsetSectors  *uint64
	Path           string
	Inode          *uint64

	// File tasks.
	FilePath  string
	OutputDir string
}

// Validate checks the kind-specific required fields. Filesystem tasks must
// carry exactly one of PartitionIndex or OffsetSectors, never both and never
// neither.
func (r Request) Validate() error {
	switch r.Kind {
	case KindEnumerateVolumes:
		if r.ImagePath == "" {
			return errors.New("enumerate_volumes requires an image path")
		}
	case KindOpenFilesystem, KindListDirectory:
		if r.ImagePath == "" {
			return errors.Errorf("%s requires an image path", r.Kind)
		}
		if r.PartitionIndex != nil && r.OffsetSectors != nil {
			return errors.New("provide either a partition index or a sector offset, not both")
		}
		if r.PartitionIndex == nil && r.OffsetSectors == nil {
			return errors.New("provide either a partition index or a sector offset")
		}
	case KindHashFile, KindExtractMetadata, KindAnalyzeCapture:
		if r.FilePath == "" {
			return errors.Errorf("%s requires a file path", r.Kind)
		}
	case KindAcquireDisk:
		if r.FilePath == "" {
			return errors.New("acquire_disk requires a source path")
		}
		if r.OutputDir == "" {
			return errors.New("acquire_disk requires an output directory")
		}
	default:
		return errors.Errorf("unknown task kind %d", int(r.Kind))
	}
	return nil
}

// Subject is the primary input the task operates on, used for journaling.
func (r Request) Subject() string {
	if r.ImagePath != "" {
		return r.ImagePath
	}
	return r.FilePath
}
