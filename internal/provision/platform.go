package provision

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/zeebo/blake3"
)

// Platform holds the normalized OS and architecture tokens used in runtime
// download URLs and directory names.
type Platform struct {
	OS   string // darwin, linux or win
	Arch string // x64 or arm64
}

// CurrentPlatform returns the platform of the running binary.
func CurrentPlatform() Platform {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// PlatformFor normalizes a GOOS/GOARCH pair. Unknown operating systems map
// to linux and unknown architectures to x64.
func PlatformFor(goos, goarch string) Platform {
	p := Platform{OS: "linux", Arch: "x64"}
	switch goos {
	case "darwin":
		p.OS = "darwin"
	case "windows":
		p.OS = "win"
	}
	if goarch == "arm64" {
		p.Arch = "arm64"
	}
	return p
}

// String returns "os-arch".
func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}

// IsWindows reports whether p targets Windows.
func (p Platform) IsWindows() bool {
	return p.OS == "win"
}

// RuntimeDirName is the directory under a runtime root that holds the
// extracted runtime for p.
func (p Platform) RuntimeDirName() string {
	return "node-" + p.String()
}

// ExecutableNames lists the engine executable file names for p, preferred
// name first.
func (p Platform) ExecutableNames() []string {
	if p.IsWindows() {
		return []string{"node.exe", "node"}
	}
	return []string{"node"}
}

// ExpandTemplate substitutes the {os} and {arch} placeholders of a download
// URL template.
func ExpandTemplate(template string, p Platform) string {
	return strings.NewReplacer("{os}", p.OS, "{arch}", p.Arch).Replace(template)
}

// urlFingerprintLen is the number of hex characters of the URL hash kept in
// cache keys.
const urlFingerprintLen = 12

// CacheKey returns the file name under which the archive downloaded from url
// is cached for p. The URL fingerprint makes a changed download location
// miss the cache instead of reusing a stale archive.
func CacheKey(p Platform, url string) string {
	sum := blake3.Sum256([]byte(url))
	fp := hex.EncodeToString(sum[:])[:urlFingerprintLen]
	return fmt.Sprintf("runtime-%s-%s-%s.zip", p.OS, p.Arch, fp)
}
