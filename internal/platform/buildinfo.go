package platform

import (
	"bufio"
	"os"
	"strings"
)

// BuildTags is the build signature baked in at link time:
//
//	-ldflags "-X github.com/gzhole/hostguard/internal/platform.BuildTags=release-keys"
//
// When empty, HostBuildInfo falls back to build.prop files.
var BuildTags string

// DefaultBuildPropPaths are read in order for a ro.build.tags entry.
var DefaultBuildPropPaths = []string{
	"/system/build.prop",
	"/vendor/build.prop",
	"/default.prop",
}

const buildTagsKey = "ro.build.tags"

// HostBuildInfo reads the build signature of the running host.
type HostBuildInfo struct {
	PropPaths []string
}

// NewHostBuildInfo returns a reader over paths, or DefaultBuildPropPaths
// when paths is empty.
func NewHostBuildInfo(paths []string) *HostBuildInfo {
	if len(paths) == 0 {
		paths = DefaultBuildPropPaths
	}
	return &HostBuildInfo{PropPaths: paths}
}

// BuildTags returns the link-time signature if set, otherwise the first
// ro.build.tags value found. Unreadable files are skipped.
func (b *HostBuildInfo) BuildTags() (string, bool) {
	if BuildTags != "" {
		return BuildTags, true
	}
	for _, p := range b.PropPaths {
		if tags, ok := readBuildProp(p, buildTagsKey); ok {
			return tags, true
		}
	}
	return "", false
}

func readBuildProp(path, key string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		return strings.TrimSpace(v), true
	}
	return "", false
}
