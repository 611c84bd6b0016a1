package metadata_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/porsha/internal/metadata"
	"github.com/Ashfaaq98/porsha/internal/models"
)

const samplePlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleName</key>
	<string>Porsha</string>
	<key>build-number</key>
	<integer>42</integer>
	<key>Authors</key>
	<array>
		<string>one</string>
		<string>two</string>
	</array>
</dict>
</plist>
`

func field(t *testing.T, fields []models.MetadataField, key string) string {
	t.Helper()
	for _, f := range fields {
		if f.Key == key {
			return f.Value
		}
	}
	t.Fatalf("field %q missing from %v", key, fields)
	return ""
}

func TestExtractGeneralAttributes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/evidence/readme.txt", []byte("plain text evidence"), 0o644))

	fields, err := metadata.Extract(fsys, "/evidence/readme.txt")
	require.NoError(t, err)

	assert.Equal(t, "readme.txt", field(t, fields, "File Name"))
	assert.Equal(t, "19", field(t, fields, "File Size"))
	assert.Contains(t, field(t, fields, "Content Type"), "text/plain")
	assert.NotEmpty(t, field(t, fields, "Modified"))
}

func TestExtractPlistFields(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/Info.plist", []byte(samplePlist), 0o644))

	fields, err := metadata.Extract(fsys, "/Info.plist")
	require.NoError(t, err)

	assert.Equal(t, "3", field(t, fields, "Plist Keys"))
	assert.Equal(t, "Porsha", field(t, fields, "Plist CFBundleName"))
	assert.Equal(t, "42", field(t, fields, "Plist Build Number"), "separators become spaced title case")
	assert.Equal(t, "(2 items)", field(t, fields, "Plist Authors"))
}

func TestExtractFieldsAreSorted(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/Info.plist", []byte(samplePlist), 0o644))

	fields, err := metadata.Extract(fsys, "/Info.plist")
	require.NoError(t, err)
	for i := 1; i < len(fields); i++ {
		assert.LessOrEqual(t, fields[i-1].Key, fields[i].Key)
	}
}

func TestExtractMalformedPlistDegrades(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/broken.plist", []byte("<plist><dict><key>oops"), 0o644))

	fields, err := metadata.Extract(fsys, "/broken.plist")
	require.NoError(t, err, "a parse failure must not fail the extraction")
	assert.Contains(t, field(t, fields, "Info"), "could not be parsed")
	assert.Equal(t, "broken.plist", field(t, fields, "File Name"))
}

func TestExtractRejectsDirectories(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/evidence", 0o755))

	_, err := metadata.Extract(fsys, "/evidence")
	assert.Error(t, err)
}
