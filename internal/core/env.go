package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Environment variables read by the engine helper script.
const (
	envPort      = "PGLITE_PORT"
	envHost      = "PGLITE_HOST"
	envUsersJSON = "PGLITE_USERS_JSON"
	envLogLevel  = "PGLITE_LOG_LEVEL"
	envPath      = "PATH"
)

// defaultSuperuser is always present in the credentials map.
const defaultSuperuser = "postgres"

// credentials returns the user map handed to the engine: the default
// superuser with an empty password plus the configured user.
func credentials(username, password string) map[string]string {
	creds := map[string]string{defaultSuperuser: ""}
	if username != "" {
		creds[username] = password
	}
	return creds
}

// usersJSON serializes creds as a flat JSON object. HTML-significant
// characters are kept literal; quotes and control characters are escaped.
func usersJSON(creds map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(creds); err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// envKeyEqual compares environment keys, case-insensitively on Windows.
func envKeyEqual(goos, a, b string) bool {
	if goos == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// lookupEnv returns the value of key in env.
func lookupEnv(goos string, env []string, key string) (string, bool) {
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if envKeyEqual(goos, k, key) {
			return v, true
		}
	}
	return "", false
}

// mergeEnv returns base with every key of overrides set to its value.
// Existing entries are replaced in place, so no key appears twice; new keys
// are appended in the order given.
func mergeEnv(goos string, base []string, overrides [][2]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	applied := make([]bool, len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		replaced := false
		for i, o := range overrides {
			if envKeyEqual(goos, k, o[0]) {
				if !applied[i] {
					out = append(out, o[0]+"="+o[1])
					applied[i] = true
				}
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, kv)
		}
	}
	for i, o := range overrides {
		if !applied[i] {
			out = append(out, o[0]+"="+o[1])
		}
	}
	return out
}

// pathListSeparator returns the PATH list separator for goos.
func pathListSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

// childEnv builds the environment for an engine child. base is normally
// os.Environ().
func childEnv(goos string, base []string, cfg Config, port int) ([]string, error) {
	users, err := usersJSON(credentials(cfg.Username, cfg.Password))
	if err != nil {
		return nil, err
	}

	overrides := [][2]string{
		{envPort, strconv.Itoa(port)},
		{envHost, cfg.Host},
		{envUsersJSON, users},
		{envLogLevel, engineLogLevel(cfg.LogLevel)},
	}
	reserved := len(overrides)
	current, _ := lookupEnv(goos, base, envPath)
	for _, k := range slices.Sorted(maps.Keys(cfg.Env)) {
		if slices.ContainsFunc(overrides[:reserved], func(o [2]string) bool { return envKeyEqual(goos, o[0], k) }) {
			continue
		}
		if envKeyEqual(goos, k, envPath) {
			current = cfg.Env[k]
			if cfg.PathPrefix != "" {
				continue
			}
		}
		overrides = append(overrides, [2]string{k, cfg.Env[k]})
	}
	if cfg.PathPrefix != "" {
		path := cfg.PathPrefix
		if current != "" {
			path += pathListSeparator(goos) + current
		}
		overrides = append(overrides, [2]string{envPath, path})
	}
	return mergeEnv(goos, base, overrides), nil
}

// engineLogLevel maps a configured level to the helper's vocabulary.
func engineLogLevel(level string) string {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return "DEBUG"
	case "INFO":
		return "INFO"
	case "ERROR":
		return "ERROR"
	default:
		return DefaultLogLevel
	}
}

// validLogLevel reports whether level is accepted by engineLogLevel.
func validLogLevel(level string) bool {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
		return true
	default:
		return false
	}
}
