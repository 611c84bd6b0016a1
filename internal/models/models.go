// Package models defines the data structures shared by Porsha's analysis components.
package models

// EntryType classifies a directory entry by its metadata type.
type EntryType string

// Directory entry types as shown in the filesystem browser.
const (
	EntryTypeDirectory    EntryType = "DIR"
	EntryTypeRegularFile  EntryType = "REG"
	EntryTypeSymbolicLink EntryType = "LNK"
	EntryTypeOther        EntryType = "OTHER"
)

// NoPartitionTableDescription marks the synthetic whole-image volume produced
// when an image carries no partition table.
const NoPartitionTableDescription = "Potential Filesystem (No Partition Table)"

// VolumeDescriptor describes one entry of a volume system enumeration. Slots
// are unique within a single enumeration but not stable across images.
type VolumeDescriptor struct {
	Slot        int    `json:"slot"`
	Description string `json:"description"`
	StartSector uint64 `json:"start_sector"`
	SectorCount uint64 `json:"sector_count"`
	Flags       string `json:"flags"`
}

// Synthetic reports whether the descriptor is the fabricated whole-image
// volume rather than a real partition-table entry.
func (v VolumeDescriptor) Synthetic() bool {
	return v.Description == NoPartitionTableDescription
}

// DirectoryEntry is one display-ready file or directory record from a listing.
// Timestamps are pre-formatted local date-times, "N/A" when absent or
// "Invalid Date" when unrepresentable.
type DirectoryEntry struct {
	Inode     uint64    `json:"inode"`
	Name      string    `json:"name"`
	Type      EntryType `json:"type"`
	Mode      string    `json:"mode"`
	Size      uint64    `json:"size"`
	Modified  string    `json:"modified"`
	Accessed  string    `json:"accessed"`
	Changed   string    `json:"changed"`
	Created   string    `json:"created"`
	IsDeleted bool      `json:"is_deleted"`
}

// FileHashes holds the digests of a single evidence file.
type FileHashes struct {
	Path   string `json:"path"`
	Size   uint64 `json:"size"`
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256"`
}

// MetadataField is one extracted key/value pair.
type MetadataField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CaptureSummary holds whole-capture statistics.
type CaptureSummary struct {
	PacketCount int    `json:"packet_count"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Conversation is a direction-normalized endpoint pair with its packet count.
// Ports are zero for protocols without a port concept.
type Conversation struct {
	Protocol    string `json:"protocol"`
	SrcIP       string `json:"src_ip"`
	SrcPort     uint16 `json:"src_port"`
	DstIP       string `json:"dst_ip"`
	DstPort     uint16 `json:"dst_port"`
	PacketCount int    `json:"packet_count"`
}

// CaptureReport is the full result of a packet-capture analysis.
type CaptureReport struct {
	Summary       CaptureSummary `json:"summary"`
	Conversations []Conversation `json:"conversations"`
}

// AcquiredImage holds the outcome of a disk acquisition.
type AcquiredImage struct {
	SourcePath string `json:"source_path"`
	ImagePath  string `json:"image_path"`
	Size       uint64 `json:"size"`
	MD5        string `json:"md5"`
	SHA256     string `json:"sha256"`
	AcquiredAt int64  `json:"acquired_at"`
}

// TaskRecord is one entry of the session's task journal.
type TaskRecord struct {
	ID         string `json:"id"`
	Session    string `json:"session"`
	Kind       string `json:"kind"`
	Resource   string `json:"resource"`
	Subject    string `json:"subject"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
}

// Task outcomes recorded in the journal.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)
