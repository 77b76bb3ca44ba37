package pglitenv_test

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/giantswarm/pglitenv"
)

// panicTestCase defines a test case for option validation panic tests.
type panicTestCase struct {
	name     string
	panics   bool
	panicMsg string
	fn       func()
}

// requirePanics calls fn and verifies it panics (or not) with the expected message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic && r != nil {
			msg := fmt.Sprint(r)
			if msg != wantMsg {
				t.Fatalf("expected panic message %q, got %q", wantMsg, msg)
			}
		}
	}()
	fn()
}

// runPanicTests runs a slice of panic test cases using requirePanics.
func runPanicTests(t *testing.T, tests []panicTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, tt.panics, tt.panicMsg, tt.fn)
		})
	}
}

func TestWithPortPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "negative",
			panics:   true,
			panicMsg: "pglitenv: port must be between 0 and 65535, got -1",
			fn:       func() { pglitenv.WithPort(-1) },
		},
		{
			name:     "too_large",
			panics:   true,
			panicMsg: "pglitenv: port must be between 0 and 65535, got 65536",
			fn:       func() { pglitenv.WithPort(65536) },
		},
		{name: "zero_auto", fn: func() { pglitenv.WithPort(0) }},
		{name: "valid", fn: func() { pglitenv.WithPort(5432) }},
	})
}

func TestWithStartupTimeoutPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "pglitenv: startup timeout must be greater than 0, got 0s",
			fn:       func() { pglitenv.WithStartupTimeout(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "pglitenv: startup timeout must be greater than 0, got -1s",
			fn:       func() { pglitenv.WithStartupTimeout(-1 * time.Second) },
		},
		{name: "valid", fn: func() { pglitenv.WithStartupTimeout(time.Second) }},
	})
}

func TestWithStopTimeoutPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "pglitenv: stop timeout must be greater than 0, got 0s",
			fn:       func() { pglitenv.WithStopTimeout(0) },
		},
		{name: "valid", fn: func() { pglitenv.WithStopTimeout(time.Second) }},
	})
}

func TestWithOutputLinesPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "pglitenv: output lines must be greater than 0, got 0",
			fn:       func() { pglitenv.WithOutputLines(0) },
		},
		{name: "valid", fn: func() { pglitenv.WithOutputLines(10) }},
	})
}

func TestWithEndpointProbePanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "pglitenv: probe interval must be greater than 0, got 0s",
			fn:       func() { pglitenv.WithEndpointProbe(0) },
		},
		{name: "valid", fn: func() { pglitenv.WithEndpointProbe(time.Millisecond) }},
	})
}

func TestWithExpectedDigestPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty",
			panics:   true,
			panicMsg: `pglitenv: expected digest must be 64 hex characters, got ""`,
			fn:       func() { pglitenv.WithExpectedDigest("") },
		},
		{
			name:     "short",
			panics:   true,
			panicMsg: `pglitenv: expected digest must be 64 hex characters, got "abcd"`,
			fn:       func() { pglitenv.WithExpectedDigest("abcd") },
		},
		{
			name:     "not_hex",
			panics:   true,
			panicMsg: fmt.Sprintf("pglitenv: expected digest must be 64 hex characters, got %q", strings.Repeat("z", 64)),
			fn:       func() { pglitenv.WithExpectedDigest(strings.Repeat("z", 64)) },
		},
		{name: "lowercase", fn: func() { pglitenv.WithExpectedDigest(strings.Repeat("ab", 32)) }},
		{name: "uppercase", fn: func() { pglitenv.WithExpectedDigest(strings.Repeat("AB", 32)) }},
	})
}

func TestWithLogLevelPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "unknown",
			panics:   true,
			panicMsg: `pglitenv: unknown log level "TRACE"`,
			fn:       func() { pglitenv.WithLogLevel("TRACE") },
		},
		{name: "debug", fn: func() { pglitenv.WithLogLevel("debug") }},
		{name: "warn", fn: func() { pglitenv.WithLogLevel("WARN") }},
	})
}

func TestWithEnvPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty",
			panics:   true,
			panicMsg: "pglitenv: environment variable name must not be empty",
			fn:       func() { pglitenv.WithEnv("", "x") },
		},
		{
			name:     "equals",
			panics:   true,
			panicMsg: `pglitenv: environment variable name must not contain '=', got "A=B"`,
			fn:       func() { pglitenv.WithEnv("A=B", "x") },
		},
		{name: "empty_value", fn: func() { pglitenv.WithEnv("A", "") }},
	})
}

func TestWithNilValuesPanic(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "bundle",
			panics:   true,
			panicMsg: "pglitenv: bundle must not be nil",
			fn:       func() { pglitenv.WithBundle(nil) },
		},
		{
			name:     "logger",
			panics:   true,
			panicMsg: "pglitenv: logger must not be nil",
			fn:       func() { pglitenv.WithLogger(nil) },
		},
	})
}

func TestWithEmptyStringOptionsPanic(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fn  func()
		msg string
	}{
		"host":            {fn: func() { pglitenv.WithHost("") }, msg: "host"},
		"commandOverride": {fn: func() { pglitenv.WithCommandOverride("") }, msg: "command override"},
		"pathFallback":    {fn: func() { pglitenv.WithPathFallbacks("node", "") }, msg: "PATH fallback name"},
		"pathPrefix":      {fn: func() { pglitenv.WithPathPrefix("") }, msg: "PATH prefix"},
		"entryScript":     {fn: func() { pglitenv.WithEntryScript("") }, msg: "entry script"},
		"archiveName":     {fn: func() { pglitenv.WithArchiveName("") }, msg: "archive name"},
		"downloadURL":     {fn: func() { pglitenv.WithDownloadURL("") }, msg: "download URL"},
		"cacheDir":        {fn: func() { pglitenv.WithCacheDir("") }, msg: "cache directory"},
		"baseDir":         {fn: func() { pglitenv.WithBaseDir("") }, msg: "base directory"},
		"database":        {fn: func() { pglitenv.WithDatabase("") }, msg: "database"},
		"username":        {fn: func() { pglitenv.WithCredentials("", "pw") }, msg: "username"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, true, "pglitenv: "+tc.msg+" must not be empty", tc.fn)
		})
	}
}

func TestOptionApplicationDefaults(t *testing.T) {
	t.Parallel()

	snap := pglitenv.ApplyOptionsForTesting()
	wantBaseDir := filepath.Join(os.TempDir(), pglitenv.DefaultBaseDirName)

	if snap.Host != pglitenv.DefaultHost {
		t.Errorf("Host = %q, want %q", snap.Host, pglitenv.DefaultHost)
	}
	if snap.Port != 0 {
		t.Errorf("Port = %d, want 0", snap.Port)
	}
	if snap.StartupTimeout != pglitenv.DefaultStartupTimeout {
		t.Errorf("StartupTimeout = %v, want %v", snap.StartupTimeout, pglitenv.DefaultStartupTimeout)
	}
	if snap.StopTimeout != pglitenv.DefaultStopTimeout {
		t.Errorf("StopTimeout = %v, want %v", snap.StopTimeout, pglitenv.DefaultStopTimeout)
	}
	if snap.EntryScript != pglitenv.DefaultEntryScript {
		t.Errorf("EntryScript = %q, want %q", snap.EntryScript, pglitenv.DefaultEntryScript)
	}
	if snap.BaseDir != wantBaseDir {
		t.Errorf("BaseDir = %q, want %q", snap.BaseDir, wantBaseDir)
	}
	if snap.Database != pglitenv.DefaultDatabase || snap.Params != pglitenv.DefaultParams {
		t.Errorf("Database, Params = %q, %q, want %q, %q", snap.Database, snap.Params, pglitenv.DefaultDatabase, pglitenv.DefaultParams)
	}
	if snap.Username != pglitenv.DefaultUsername || snap.Password != "" {
		t.Errorf("Username, Password = %q, %q, want %q, empty", snap.Username, snap.Password, pglitenv.DefaultUsername)
	}
	if snap.LogLevel != pglitenv.DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", snap.LogLevel, pglitenv.DefaultLogLevel)
	}
	if snap.OutputLines != pglitenv.DefaultOutputLines {
		t.Errorf("OutputLines = %d, want %d", snap.OutputLines, pglitenv.DefaultOutputLines)
	}
	if snap.PathFallbacks != nil {
		t.Errorf("PathFallbacks = %v, want nil (platform defaults)", snap.PathFallbacks)
	}
	if snap.EndpointProbe {
		t.Error("EndpointProbe = true, want false")
	}
	if snap.CommandOverride != "" || snap.DownloadURLTemplate != "" || snap.ExpectedDigest != "" {
		t.Errorf("CommandOverride, DownloadURLTemplate, ExpectedDigest = %q, %q, %q, want empty",
			snap.CommandOverride, snap.DownloadURLTemplate, snap.ExpectedDigest)
	}
	if snap.Bundle != nil || snap.Logger != nil {
		t.Error("Bundle and Logger should be unset by default")
	}
}

func TestOptionApplicationOverrides(t *testing.T) {
	t.Parallel()

	bundle := fstest.MapFS{"start.mjs": {Data: []byte("")}}
	logger := slog.New(slog.DiscardHandler)
	digest := strings.Repeat("0f", 32)

	tests := []struct {
		name   string
		opt    pglitenv.Option
		verify func(t *testing.T, snap pglitenv.ConfigSnapshot)
	}{
		{
			name: "WithHost",
			opt:  pglitenv.WithHost("0.0.0.0"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Host != "0.0.0.0" {
					t.Errorf("Host = %q, want 0.0.0.0", snap.Host)
				}
			},
		},
		{
			name: "WithPort",
			opt:  pglitenv.WithPort(6543),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Port != 6543 {
					t.Errorf("Port = %d, want 6543", snap.Port)
				}
			},
		},
		{
			name: "WithStartupTimeout",
			opt:  pglitenv.WithStartupTimeout(90 * time.Second),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.StartupTimeout != 90*time.Second {
					t.Errorf("StartupTimeout = %v, want 90s", snap.StartupTimeout)
				}
			},
		},
		{
			name: "WithStopTimeout",
			opt:  pglitenv.WithStopTimeout(time.Second),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.StopTimeout != time.Second {
					t.Errorf("StopTimeout = %v, want 1s", snap.StopTimeout)
				}
			},
		},
		{
			name: "WithCommandOverride",
			opt:  pglitenv.WithCommandOverride("bun run; deno run -A"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.CommandOverride != "bun run; deno run -A" {
					t.Errorf("CommandOverride = %q", snap.CommandOverride)
				}
			},
		},
		{
			name: "WithPathFallbacks_none",
			opt:  pglitenv.WithPathFallbacks(),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.PathFallbacks == nil || len(snap.PathFallbacks) != 0 {
					t.Errorf("PathFallbacks = %#v, want empty non-nil", snap.PathFallbacks)
				}
			},
		},
		{
			name: "WithPathFallbacks_names",
			opt:  pglitenv.WithPathFallbacks("node22", "node"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if !slices.Equal(snap.PathFallbacks, []string{"node22", "node"}) {
					t.Errorf("PathFallbacks = %v", snap.PathFallbacks)
				}
			},
		},
		{
			name: "WithPathPrefix",
			opt:  pglitenv.WithPathPrefix("/opt/node/bin"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.PathPrefix != "/opt/node/bin" {
					t.Errorf("PathPrefix = %q", snap.PathPrefix)
				}
			},
		},
		{
			name: "WithEnv",
			opt:  pglitenv.WithEnv("NODE_OPTIONS", "--max-old-space-size=512"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Env["NODE_OPTIONS"] != "--max-old-space-size=512" {
					t.Errorf("Env = %v", snap.Env)
				}
			},
		},
		{
			name: "WithEntryScript",
			opt:  pglitenv.WithEntryScript("/srv/engine/start.mjs"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.EntryScript != "/srv/engine/start.mjs" {
					t.Errorf("EntryScript = %q", snap.EntryScript)
				}
			},
		},
		{
			name: "WithBundle",
			opt:  pglitenv.WithBundle(bundle),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Bundle == nil {
					t.Error("Bundle = nil, want the MapFS")
				}
			},
		},
		{
			name: "WithArchiveName",
			opt:  pglitenv.WithArchiveName("node.zip"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.ArchiveName != "node.zip" {
					t.Errorf("ArchiveName = %q", snap.ArchiveName)
				}
			},
		},
		{
			name: "WithDownloadURL",
			opt:  pglitenv.WithDownloadURL("https://example.com/node-{os}-{arch}.zip"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.DownloadURLTemplate != "https://example.com/node-{os}-{arch}.zip" {
					t.Errorf("DownloadURLTemplate = %q", snap.DownloadURLTemplate)
				}
			},
		},
		{
			name: "WithExpectedDigest",
			opt:  pglitenv.WithExpectedDigest(digest),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.ExpectedDigest != digest {
					t.Errorf("ExpectedDigest = %q", snap.ExpectedDigest)
				}
			},
		},
		{
			name: "WithCacheDir",
			opt:  pglitenv.WithCacheDir("/var/cache/pglitenv"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.CacheDir != "/var/cache/pglitenv" {
					t.Errorf("CacheDir = %q", snap.CacheDir)
				}
			},
		},
		{
			name: "WithBaseDir",
			opt:  pglitenv.WithBaseDir("/ci/scratch"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.BaseDir != "/ci/scratch" {
					t.Errorf("BaseDir = %q", snap.BaseDir)
				}
			},
		},
		{
			name: "WithDatabase",
			opt:  pglitenv.WithDatabase("app"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Database != "app" {
					t.Errorf("Database = %q", snap.Database)
				}
			},
		},
		{
			name: "WithParams_empty",
			opt:  pglitenv.WithParams(""),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Params != "" {
					t.Errorf("Params = %q, want empty", snap.Params)
				}
			},
		},
		{
			name: "WithCredentials",
			opt:  pglitenv.WithCredentials("app", "secret"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Username != "app" || snap.Password != "secret" {
					t.Errorf("Username, Password = %q, %q", snap.Username, snap.Password)
				}
			},
		},
		{
			name: "WithLogLevel",
			opt:  pglitenv.WithLogLevel("DEBUG"),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.LogLevel != "DEBUG" {
					t.Errorf("LogLevel = %q", snap.LogLevel)
				}
			},
		},
		{
			name: "WithOutputLines",
			opt:  pglitenv.WithOutputLines(50),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.OutputLines != 50 {
					t.Errorf("OutputLines = %d, want 50", snap.OutputLines)
				}
			},
		},
		{
			name: "WithEndpointProbe",
			opt:  pglitenv.WithEndpointProbe(20 * time.Millisecond),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if !snap.EndpointProbe || snap.ProbeInterval != 20*time.Millisecond {
					t.Errorf("EndpointProbe, ProbeInterval = %v, %v", snap.EndpointProbe, snap.ProbeInterval)
				}
			},
		},
		{
			name: "WithLogger",
			opt:  pglitenv.WithLogger(logger),
			verify: func(t *testing.T, snap pglitenv.ConfigSnapshot) {
				t.Helper()
				if snap.Logger != logger {
					t.Error("Logger was not set")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.verify(t, pglitenv.ApplyOptionsForTesting(tt.opt))
		})
	}
}

func TestOptionApplicationLastWriteWins(t *testing.T) {
	t.Parallel()

	snap := pglitenv.ApplyOptionsForTesting(
		pglitenv.WithStartupTimeout(time.Second),
		pglitenv.WithStartupTimeout(2*time.Second),
	)

	if snap.StartupTimeout != 2*time.Second {
		t.Errorf("StartupTimeout = %v, want 2s (last write wins)", snap.StartupTimeout)
	}
}

func TestWithEnvAccumulates(t *testing.T) {
	t.Parallel()

	first := pglitenv.WithEnv("A", "1")
	snap := pglitenv.ApplyOptionsForTesting(first, pglitenv.WithEnv("B", "2"), pglitenv.WithEnv("A", "3"))
	if len(snap.Env) != 2 || snap.Env["A"] != "3" || snap.Env["B"] != "2" {
		t.Errorf("Env = %v, want A=3 B=2", snap.Env)
	}

	// Reusing an option must not share state between configs.
	other := pglitenv.ApplyOptionsForTesting(first)
	if len(other.Env) != 1 || other.Env["A"] != "1" {
		t.Errorf("Env = %v, want only A=1", other.Env)
	}
}
