package diskimage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/porsha/internal/diskimage"
	"github.com/Ashfaaq98/porsha/internal/diskimage/imagetest"
	"github.com/Ashfaaq98/porsha/internal/models"
)

func TestVolumesSynthesizesWholeImageDescriptor(t *testing.T) {
	img := &imagetest.Image{Sectors: 20480, NoPartitionTable: true}
	src, err := img.OpenImage("usb.img")
	require.NoError(t, err)
	defer src.Close()

	vols, err := diskimage.Volumes(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, vols, 1)

	v := vols[0]
	assert.Equal(t, 0, v.Slot)
	assert.Equal(t, models.NoPartitionTableDescription, v.Description)
	assert.Equal(t, uint64(0), v.StartSector)
	assert.Equal(t, uint64(20480), v.SectorCount)
	assert.True(t, v.Synthetic())
}

func TestVolumesPassesThroughRealPartitions(t *testing.T) {
	img := &imagetest.Image{
		Sectors: 204800,
		Volumes: []models.VolumeDescriptor{
			{Slot: 0, Description: "NTFS / exFAT (0x07)", StartSector: 2048, SectorCount: 100352},
			{Slot: 1, Description: "Linux (0x83)", StartSector: 102400, SectorCount: 102400},
		},
	}
	src, err := img.OpenImage("dual.img")
	require.NoError(t, err)
	defer src.Close()

	vols, err := diskimage.Volumes(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, vols, 2)
	assert.False(t, vols[0].Synthetic())
	assert.False(t, vols[1].Synthetic())
}

func TestVolumesSurfacesUnexpectedErrors(t *testing.T) {
	img := &imagetest.Image{EnumerateErr: assert.AnError}
	src, err := img.OpenImage("broken.img")
	require.NoError(t, err)
	defer src.Close()

	_, err = diskimage.Volumes(context.Background(), src)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestOpenRequestValidation(t *testing.T) {
	partition := 0
	offset := uint64(2048)

	assert.NoError(t, diskimage.OpenRequest{PartitionIndex: &partition}.Validate())
	assert.NoError(t, diskimage.OpenRequest{OffsetSectors: &offset}.Validate())
	assert.Error(t, diskimage.OpenRequest{}.Validate())
	assert.Error(t, diskimage.OpenRequest{PartitionIndex: &partition, OffsetSectors: &offset}.Validate())
}

func TestInvalidOpenRequestNeverReachesBackend(t *testing.T) {
	img := &imagetest.Image{Whole: &imagetest.Filesystem{Label: "ext4", Root: 2}}
	src, err := img.OpenImage("plain.img")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.OpenFilesystem(context.Background(), diskimage.OpenRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(0), img.OpenCalls.Load(),
		"a precondition violation must fail before the backend is invoked")
}

func TestShapeListingFiltersAndSorts(t *testing.T) {
	mtime := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	raw := []diskimage.Entry{
		{Inode: 5, Name: "zebra.txt", Type: models.EntryTypeRegularFile, Modified: mtime},
		{Inode: 2, Name: ".", Type: models.EntryTypeDirectory},
		{Inode: 2, Name: "..", Type: models.EntryTypeDirectory},
		{Inode: 10, Name: "$MFT", Type: models.EntryTypeRegularFile},
		{Inode: 7, Name: "Apple", Type: models.EntryTypeDirectory},
		{Inode: 8, Name: "banana", Type: models.EntryTypeDirectory},
		{Inode: 9, Name: "ALPHA.txt", Type: models.EntryTypeRegularFile},
	}

	shaped := diskimage.ShapeListing(raw, false)
	names := make([]string, len(shaped))
	for i, e := range shaped {
		names[i] = e.Name
	}
	// Dot entries and metadata files are gone; directories come first; names
	// compare case-insensitively within each group.
	assert.Equal(t, []string{"Apple", "banana", "ALPHA.txt", "zebra.txt"}, names)
}

func TestShapeListingKeepsDotEntriesAtRoot(t *testing.T) {
	raw := []diskimage.Entry{
		{Inode: 2, Name: ".", Type: models.EntryTypeDirectory},
		{Inode: 2, Name: "..", Type: models.EntryTypeDirectory},
		{Inode: 3, Name: "home", Type: models.EntryTypeDirectory},
	}

	shaped := diskimage.ShapeListing(raw, true)
	require.Len(t, shaped, 3)
	assert.Equal(t, ".", shaped[0].Name)
	assert.Equal(t, "..", shaped[1].Name)
	assert.Equal(t, "home", shaped[2].Name)
}

func TestShapeListingFormatsFields(t *testing.T) {
	mtime := time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local)
	raw := []diskimage.Entry{
		{
			Inode:     11,
			Name:      "report.pdf",
			Type:      models.EntryTypeRegularFile,
			Mode:      0o644,
			ModeKnown: true,
			Size:      4096,
			Modified:  mtime,
			Created:   time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(500, 0, 0),
			IsDeleted: true,
		},
	}

	shaped := diskimage.ShapeListing(raw, false)
	require.Len(t, shaped, 1)
	e := shaped[0]
	assert.Equal(t, "0644", e.Mode)
	assert.Equal(t, "2024-03-09 14:30:00", e.Modified)
	assert.Equal(t, "N/A", e.Accessed, "zero timestamps render as N/A")
	assert.Equal(t, "Invalid Date", e.Created, "out-of-range timestamps render as Invalid Date")
	assert.True(t, e.IsDeleted, "the deleted flag survives shaping")
}
