package diskimage

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// metadataPrefix marks virtual filesystem-metadata files, which are
// suppressed from every listing.
const metadataPrefix = "$"

// ShapeListing converts raw backend entries into display-ready records and
// applies the listing rules: "." and ".." are suppressed except when the
// listing is of the filesystem root, metadata-prefixed names are suppressed
// unconditionally, and the result is sorted directories first, then
// case-insensitively by name.
func ShapeListing(entries []Entry, atRoot bool) []models.DirectoryEntry {
	fold := cases.Fold()

	shaped := make([]models.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if !atRoot && (e.Name == "." || e.Name == "..") {
			continue
		}
		if strings.HasPrefix(e.Name, metadataPrefix) {
			continue
		}
		shaped = append(shaped, models.DirectoryEntry{
			Inode:     e.Inode,
			Name:      e.Name,
			Type:      e.Type,
			Mode:      utils.FormatMode(e.ModeKnown, e.Mode),
			Size:      e.Size,
			Modified:  utils.FormatTimestamp(e.Modified),
			Accessed:  utils.FormatTimestamp(e.Accessed),
			Changed:   utils.FormatTimestamp(e.Changed),
			Created:   utils.FormatTimestamp(e.Created),
			IsDeleted: e.IsDeleted,
		})
	}

	sort.SliceStable(shaped, func(i, j int) bool {
		di := shaped[i].Type == models.EntryTypeDirectory
		dj := shaped[j].Type == models.EntryTypeDirectory
		if di != dj {
			return di
		}
		return fold.String(shaped[i].Name) < fold.String(shaped[j].Name)
	})
	return shaped
}
