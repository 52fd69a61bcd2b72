// Package registry manages the flat JSON file of named locations
// (ski resorts) that reports are produced for.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

const (
	DefaultLockTimeout = 10 * time.Second

	// DefaultStaleLockAge is how old a lock file must be before it is taken
	// over even when its owner cannot be checked.
	DefaultStaleLockAge = time.Minute
)

var (
	ErrNotFound  = errors.New("location not found")
	ErrCollision = errors.New("location key already exists")
)

// CollisionError is returned by Add when the key is already registered.
type CollisionError struct {
	Key      string
	Existing Location
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("location %q already exists (%s, %s)", e.Key, e.Existing.Name, e.Existing.Country)
}

func (e *CollisionError) Is(target error) bool { return target == ErrCollision }

// Location is one registry entry. Lat and Lon are kept as the text found in
// the file; they are passed to the provider without numeric validation.
type Location struct {
	Key     string `json:"-"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
}

// Registry reads and appends to a registry file. Reads take no lock; Add is
// serialized in-process by a mutex and across processes by a lock file.
type Registry struct {
	path         string
	LockTimeout  time.Duration
	StaleLockAge time.Duration

	mu sync.Mutex
}

func New(path string) *Registry {
	return &Registry{path: path, LockTimeout: DefaultLockTimeout, StaleLockAge: DefaultStaleLockAge}
}

func (r *Registry) Path() string { return r.path }

// Load reads every location in the file, keyed by location key.
func (r *Registry) Load() (map[string]Location, error) {
	raw, err := r.readRaw()
	if err != nil {
		return nil, err
	}
	locs := make(map[string]Location, len(raw))
	for key, entry := range raw {
		loc, err := decodeEntry(key, entry)
		if err != nil {
			return nil, err
		}
		locs[key] = loc
	}
	return locs, nil
}

// Get returns the location for key, or an error wrapping ErrNotFound.
func (r *Registry) Get(key string) (Location, error) {
	locs, err := r.Load()
	if err != nil {
		return Location{}, err
	}
	loc, ok := locs[key]
	if !ok {
		return Location{}, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return loc, nil
}

// List returns all locations sorted by key.
func (r *Registry) List() ([]Location, error) {
	locs, err := r.Load()
	if err != nil {
		return nil, err
	}
	return sorted(locs, func(Location) bool { return true }), nil
}

// InCountry returns the locations whose country matches, ignoring case,
// sorted by key.
func (r *Registry) InCountry(country string) ([]Location, error) {
	locs, err := r.Load()
	if err != nil {
		return nil, err
	}
	return sorted(locs, func(l Location) bool {
		return strings.EqualFold(strings.TrimSpace(l.Country), strings.TrimSpace(country))
	}), nil
}

// Select returns the named locations in the order given. An unknown key
// fails the whole selection.
func (r *Registry) Select(keys []string) ([]Location, error) {
	locs, err := r.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(keys))
	for _, key := range keys {
		loc, ok := locs[key]
		if !ok {
			return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		out = append(out, loc)
	}
	return out, nil
}

// Add registers a new location. An existing key returns a *CollisionError
// and leaves the file untouched; otherwise the whole file is rewritten
// atomically.
func (r *Registry) Add(loc Location) error {
	if strings.TrimSpace(loc.Key) == "" {
		return errors.New("add location: key is required")
	}
	if strings.TrimSpace(loc.Name) == "" {
		return fmt.Errorf("add location %q: name is required", loc.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("add location %q: %w", loc.Key, err)
	}
	defer unlock()

	raw, err := r.readRaw()
	if errors.Is(err, os.ErrNotExist) {
		raw = map[string]json.RawMessage{}
	} else if err != nil {
		return fmt.Errorf("add location %q: %w", loc.Key, err)
	}

	if existing, ok := raw[loc.Key]; ok {
		prev, _ := decodeEntry(loc.Key, existing)
		return &CollisionError{Key: loc.Key, Existing: prev}
	}

	entry, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location %q: %w", loc.Key, err)
	}
	raw[loc.Key] = entry

	if err := r.writeRaw(raw); err != nil {
		return fmt.Errorf("add location %q: %w", loc.Key, err)
	}
	return nil
}

func (r *Registry) readRaw() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	raw := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	return raw, nil
}

// writeRaw replaces the registry file via a temp file and rename. Existing
// entries are written back from their raw JSON so their values survive as-is,
// and the file keeps its permissions.
func (r *Registry) writeRaw(raw map[string]json.RawMessage) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(r.path); err == nil {
		mode = fi.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// lock takes <path>.lock, retrying with exponential backoff while another
// writer holds it. A lock left by a dead process, or older than StaleLockAge,
// is removed and the attempt retried.
func (r *Registry) lock() (func(), error) {
	lockPath := r.path + ".lock"
	timeout := r.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	staleAge := r.StaleLockAge
	if staleAge <= 0 {
		staleAge = DefaultStaleLockAge
	}

	operation := func() error {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			if reason, stale := staleLock(lockPath, staleAge); stale {
				if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					return backoff.Permanent(fmt.Errorf("remove stale lock %s (%s): %w", lockPath, reason, err))
				}
				return fmt.Errorf("removed stale lock %s (%s)", lockPath, reason)
			}
			return fmt.Errorf("registry locked by %s (remove it if no writer is running)", lockPath)
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create lock: %w", err))
		}
		fmt.Fprintf(f, "%d\n", os.Getpid())
		return f.Close()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = timeout
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return func() { os.Remove(lockPath) }, nil
}

// staleLock reports whether the lock at path was abandoned: its recorded
// owner is no longer running, or it is older than maxAge.
func staleLock(path string, maxAge time.Duration) (string, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if age := time.Since(fi.ModTime()); age > maxAge {
		return fmt.Sprintf("held for %s", age.Round(time.Second)), true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return "", false
	}
	if !processAlive(pid) {
		return fmt.Sprintf("owner pid %d not running", pid), true
	}
	return "", false
}

// processAlive probes pid with signal 0. Platforms without that probe report
// every process as alive, leaving only the age check.
func processAlive(pid int) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// decodeEntry reads one entry. Coordinates may be JSON strings or numbers.
func decodeEntry(key string, entry json.RawMessage) (Location, error) {
	res := gjson.ParseBytes(entry)
	if !res.IsObject() {
		return Location{}, fmt.Errorf("registry entry %q: not an object", key)
	}
	return Location{
		Key:     key,
		Name:    res.Get("name").String(),
		Country: res.Get("country").String(),
		Lat:     res.Get("lat").String(),
		Lon:     res.Get("lon").String(),
	}, nil
}

func sorted(locs map[string]Location, keep func(Location) bool) []Location {
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
