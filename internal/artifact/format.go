package artifact

import (
	"github.com/mangoplex/multipacks/internal/packs"
)

// formats lists the first game version of every resource pack format.
var formats = []struct {
	since  packs.Version
	format int
}{
	{packs.MustParseVersion("1.13"), 4},
	{packs.MustParseVersion("1.15"), 5},
	{packs.MustParseVersion("1.16.2"), 6},
	{packs.MustParseVersion("1.17"), 7},
	{packs.MustParseVersion("1.18"), 8},
	{packs.MustParseVersion("1.19"), 9},
	{packs.MustParseVersion("1.19.3"), 12},
	{packs.MustParseVersion("1.19.4"), 13},
	{packs.MustParseVersion("1.20"), 15},
	{packs.MustParseVersion("1.20.2"), 18},
	{packs.MustParseVersion("1.20.3"), 22},
	{packs.MustParseVersion("1.20.5"), 32},
	{packs.MustParseVersion("1.21"), 34},
	{packs.MustParseVersion("1.21.2"), 42},
	{packs.MustParseVersion("1.21.4"), 46},
	{packs.MustParseVersion("1.21.5"), 55},
}

// PackFormat returns the pack format of the game version v. Versions newer
// than the table get the latest known format; versions before 1.13 have none.
func PackFormat(v packs.Version) (int, bool) {
	format, ok := 0, false
	for _, f := range formats {
		if v.Less(f.since) {
			break
		}
		format, ok = f.format, true
	}
	return format, ok
}
