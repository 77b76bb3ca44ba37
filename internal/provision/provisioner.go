package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/pglitenv/internal/fileutil"
	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrNoExecutable is returned when an extracted runtime holds no engine
// executable for the platform.
const ErrNoExecutable = sentinel.Error("runtime does not contain an engine executable")

// ErrNoDownloadURL is returned by Fetch when no URL template is configured.
const ErrNoDownloadURL = sentinel.Error("no download URL configured")

// DefaultArchiveName is the name of the runtime archive inside a bundle
// filesystem.
const DefaultArchiveName = "runtime.zip"

// DefaultCacheDirName is the directory below os.TempDir used for downloaded
// archives when no cache directory is configured.
const DefaultCacheDirName = "pglite-runtime-cache"

// Origin records where a Bundle came from.
type Origin string

const (
	// OriginEmbedded marks a runtime extracted from the bundle filesystem.
	OriginEmbedded Origin = "embedded"
	// OriginDownloaded marks a runtime fetched from the download URL.
	OriginDownloaded Origin = "downloaded"
)

// Bundle identifies a resolved engine executable.
type Bundle struct {
	Path   string // absolute path of the executable
	Dir    string // platform runtime directory that contains Path
	Origin Origin
	Digest string // SHA-256 of the downloaded archive; empty otherwise
}

// Config holds the provisioner settings. All fields are optional.
type Config struct {
	Bundle         fs.FS        // filesystem that may hold the runtime archive
	ArchiveName    string       // archive name inside Bundle (default DefaultArchiveName)
	ExecPatterns   []string     // patterns of entries extracted executable (nil uses DefaultExecPatterns)
	URLTemplate    string       // download URL with {os} and {arch} placeholders
	ExpectedDigest string       // hex SHA-256 the downloaded archive must match
	CacheDir       string       // download cache (empty uses os.TempDir()/DefaultCacheDirName)
	Platform       Platform     // zero value uses CurrentPlatform
	HTTPClient     *http.Client // nil uses a client with connect and header timeouts
	Logger         *slog.Logger // nil uses slog.Default
}

// Provisioner resolves engine runtimes. It is safe for concurrent use.
type Provisioner struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
	group  singleflight.Group
}

// New returns a Provisioner for cfg.
func New(cfg Config) *Provisioner {
	if cfg.ArchiveName == "" {
		cfg.ArchiveName = DefaultArchiveName
	}
	if cfg.ExecPatterns == nil {
		cfg.ExecPatterns = DefaultExecPatterns
	}
	if cfg.Platform == (Platform{}) {
		cfg.Platform = CurrentPlatform()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), DefaultCacheDirName)
	}

	p := &Provisioner{cfg: cfg, client: cfg.HTTPClient, log: cfg.Logger}
	if p.client == nil {
		p.client = newHTTPClient()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Platform returns the platform runtimes are resolved for.
func (p *Provisioner) Platform() Platform {
	return p.cfg.Platform
}

// ArchiveName returns the name of the runtime archive in the bundle
// filesystem.
func (p *Provisioner) ArchiveName() string {
	return p.cfg.ArchiveName
}

// Resolve materializes the engine runtime below runtimeDir. It returns nil
// and no error when neither the bundle nor a download URL yields one.
func (p *Provisioner) Resolve(ctx context.Context, runtimeDir string) (*Bundle, error) {
	targetDir := filepath.Join(runtimeDir, p.cfg.Platform.RuntimeDirName())

	b, err := p.resolveEmbedded(runtimeDir, targetDir)
	if err != nil || b != nil {
		return b, err
	}

	if p.cfg.URLTemplate == "" {
		p.log.Debug("no runtime resolved", "platform", p.cfg.Platform.String())
		return nil, nil
	}
	return p.resolveDownloaded(ctx, targetDir)
}

func (p *Provisioner) resolveEmbedded(runtimeDir, targetDir string) (*Bundle, error) {
	if p.cfg.Bundle == nil {
		return nil, nil
	}
	if _, err := fs.Stat(p.cfg.Bundle, p.cfg.ArchiveName); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat embedded archive: %w", err)
	}

	if err := extractFS(p.cfg.Bundle, p.cfg.ArchiveName, runtimeDir, p.cfg.ExecPatterns); err != nil {
		return nil, err
	}

	exe := p.locate(targetDir)
	if exe == "" {
		p.log.Debug("embedded archive has no runtime for platform", "platform", p.cfg.Platform.String())
		return nil, nil
	}
	p.markExecutable(exe)
	p.log.Debug("using embedded runtime", "path", exe)
	return &Bundle{Path: exe, Dir: targetDir, Origin: OriginEmbedded}, nil
}

func (p *Provisioner) resolveDownloaded(ctx context.Context, targetDir string) (*Bundle, error) {
	if exe := p.locate(targetDir); exe != "" {
		p.markExecutable(exe)
		p.log.Debug("using installed runtime", "path", exe)
		return &Bundle{Path: exe, Dir: targetDir, Origin: OriginDownloaded}, nil
	}

	archive, digest, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp(p.cfg.CacheDir, "runtime-staging-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer fileutil.RemoveTree(p.log, staging)

	if err := extractFile(archive, staging, p.cfg.ExecPatterns); err != nil {
		return nil, err
	}

	if err := p.install(staging, targetDir); err != nil {
		return nil, err
	}

	exe := p.locate(targetDir)
	if exe == "" {
		return nil, fmt.Errorf("%w: archive %s", ErrNoExecutable, archive)
	}
	p.markExecutable(exe)
	p.log.Info("installed downloaded runtime", "path", exe, "digest", digest)
	return &Bundle{Path: exe, Dir: targetDir, Origin: OriginDownloaded, Digest: digest}, nil
}

// copyTree is replaced in tests.
var copyTree = fileutil.CopyTree

// install copies staging into a sibling of targetDir and renames it into
// place. A failed copy leaves an existing targetDir untouched.
func (p *Provisioner) install(staging, targetDir string) error {
	parent := filepath.Dir(targetDir)
	if err := fileutil.EnsureDir(parent); err != nil {
		return err
	}
	next, err := os.MkdirTemp(parent, filepath.Base(targetDir)+".new-")
	if err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}
	if err := copyTree(staging, next); err != nil {
		fileutil.RemoveTree(p.log, next)
		return fmt.Errorf("install runtime into %s: %w", targetDir, err)
	}

	prev := ""
	if _, err := os.Lstat(targetDir); err == nil {
		prev = next + ".old"
		if err := os.Rename(targetDir, prev); err != nil {
			fileutil.RemoveTree(p.log, next)
			return fmt.Errorf("move previous runtime %s: %w", targetDir, err)
		}
	}
	if err := os.Rename(next, targetDir); err != nil {
		if prev != "" {
			_ = os.Rename(prev, targetDir)
		}
		fileutil.RemoveTree(p.log, next)
		return fmt.Errorf("install runtime into %s: %w", targetDir, err)
	}
	if prev != "" {
		fileutil.RemoveTree(p.log, prev)
	}
	return nil
}

// Fetch makes sure the archive for the configured URL is in the cache and
// matches the expected digest. It returns the archive path and its digest.
// A cached archive is verified again; one that does not match is removed
// so the next attempt downloads it afresh.
func (p *Provisioner) Fetch(ctx context.Context) (string, string, error) {
	if p.cfg.URLTemplate == "" {
		return "", "", ErrNoDownloadURL
	}
	url := ExpandTemplate(p.cfg.URLTemplate, p.cfg.Platform)
	archive := filepath.Join(p.cfg.CacheDir, CacheKey(p.cfg.Platform, url))

	v, err, _ := p.group.Do(archive, func() (any, error) {
		return p.fetchLocked(ctx, url, archive)
	})
	if err != nil {
		return "", "", err
	}
	return archive, v.(string), nil
}

func (p *Provisioner) fetchLocked(ctx context.Context, url, archive string) (string, error) {
	if err := fileutil.EnsureDir(p.cfg.CacheDir); err != nil {
		return "", err
	}

	lock, err := acquireFileLock(ctx, archive+".lock")
	if err != nil {
		return "", err
	}
	defer releaseFileLock(p.log, lock)

	switch _, err := os.Stat(archive); {
	case err == nil:
		p.log.Debug("using cached runtime archive", "path", archive)
	case errors.Is(err, os.ErrNotExist):
		p.log.Info("downloading runtime", "url", url)
		if err := download(ctx, p.client, url, archive); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("stat archive %s: %w", archive, err)
	}

	digest, err := fileDigest(archive)
	if err != nil {
		return "", err
	}
	if p.cfg.ExpectedDigest == "" {
		p.log.Warn("no expected digest configured, runtime archive is not verified", "path", archive, "digest", digest)
		return digest, nil
	}
	if err := verifyDigest(archive, digest, p.cfg.ExpectedDigest); err != nil {
		if rmErr := os.Remove(archive); rmErr != nil {
			p.log.Debug("failed to remove mismatched archive", "path", archive, "err", rmErr)
		}
		return "", err
	}
	return digest, nil
}

// locate returns the engine executable below dir: bin/<name> or <name> for
// the platform's executable names, else the first file with such a name
// found walking dir. It returns "" when there is none.
func (p *Provisioner) locate(dir string) string {
	names := p.cfg.Platform.ExecutableNames()
	for _, name := range names {
		for _, candidate := range []string{filepath.Join(dir, "bin", name), filepath.Join(dir, name)} {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}
	}

	var found string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if d.Type().IsRegular() && slices.Contains(names, d.Name()) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// markExecutable adds exec permission for owner, group and others. Failure
// is logged and otherwise ignored.
func (p *Provisioner) markExecutable(path string) {
	info, err := os.Stat(path)
	if err != nil {
		p.log.Debug("failed to stat runtime executable", "path", path, "err", err)
		return
	}
	if info.Mode().Perm()&0o111 == 0o111 {
		return
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		p.log.Debug("failed to mark runtime executable", "path", path, "err", err)
	}
}
