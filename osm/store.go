package osm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Storage backend errors.
var (
	// ErrNotFound indicates a requested object version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath indicates a path component that cannot be mapped onto
	// backend storage (empty, a separator, or an escape like "..").
	ErrInvalidPath = errors.New("invalid path")
)

// ObjectEntry describes one stored object version, as enumerated by a
// backend listing.
type ObjectEntry struct {
	Key       string
	Version   Version
	SizeBytes int64
}

// Store abstracts the physical storage backend behind the runtime's
// primitives. Implementations target the local filesystem, memory, or
// S3-compatible object stores.
//
// Write must refuse to overwrite an existing version with ErrVersionExists;
// Read and Delete must report an absent version as ErrNotFound.
type Store interface {
	// Read returns the payload of one object version.
	Read(ctx context.Context, path ObjectPath, version Version) ([]byte, error)

	// Write stores the payload of a new object version.
	Write(ctx context.Context, path ObjectPath, version Version, data []byte) error

	// Delete removes one object version.
	Delete(ctx context.Context, path ObjectPath, version Version) error

	// ListDatasets enumerates every dataset the backend holds.
	ListDatasets(ctx context.Context) ([]DatasetPath, error)

	// ListPartitions enumerates a dataset's partition keys.
	ListPartitions(ctx context.Context, path DatasetPath) ([]string, error)

	// ListObjects enumerates every object version under a partition.
	ListObjects(ctx context.Context, path PartitionPath) ([]ObjectEntry, error)
}

// versionedKey renders the backend file name for one object version.
func versionedKey(key string, version Version) string {
	return fmt.Sprintf("%s@v%d", key, version)
}

// parseVersionedKey splits a backend file name into object key and version.
func parseVersionedKey(name string) (string, Version, bool) {
	idx := strings.LastIndex(name, "@v")
	if idx <= 0 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(name[idx+2:], 10, 64)
	if err != nil || n < 1 {
		return "", 0, false
	}
	return name[:idx], Version(n), true
}

// validComponent rejects path components that would escape or collapse the
// backend layout.
func validComponent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}

func objectComponents(path ObjectPath) ([]string, error) {
	parts := []string{
		path.Partition.Dataset.Bucket,
		path.Partition.Dataset.Name,
		path.Partition.Partition,
		path.Key,
	}
	for _, part := range parts {
		if !validComponent(part) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, part)
		}
	}
	return parts, nil
}

// -----------------------------------------------------------------------------
// Filesystem store
// -----------------------------------------------------------------------------

// fsStore lays objects out as root/bucket/dataset/partition/key@vN.
type fsStore struct {
	root string
}

// NewFSStore creates a filesystem-backed store rooted at the given
// directory. The directory must exist.
func NewFSStore(root string) (Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, root)
	}
	return &fsStore{root: root}, nil
}

func (f *fsStore) filePath(path ObjectPath, version Version) (string, error) {
	parts, err := objectComponents(path)
	if err != nil {
		return "", err
	}
	parts[len(parts)-1] = versionedKey(path.Key, version)
	return filepath.Join(append([]string{f.root}, parts...)...), nil
}

func (f *fsStore) Read(_ context.Context, path ObjectPath, version Version) ([]byte, error) {
	full, err := f.filePath(path, version)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, path, version)
	}
	return data, err
}

func (f *fsStore) Write(_ context.Context, path ObjectPath, version Version, data []byte) error {
	full, err := f.filePath(path, version)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s@%s", ErrVersionExists, path, version)
		}
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = file.Write(data)
	return err
}

func (f *fsStore) Delete(_ context.Context, path ObjectPath, version Version) error {
	full, err := f.filePath(path, version)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s@%s", ErrNotFound, path, version)
		}
		return err
	}

	// Prune now-empty partition and dataset directories so listings reflect
	// removal. os.Remove refuses non-empty directories.
	dir := filepath.Dir(full)
	for i := 0; i < 3; i++ {
		if os.Remove(dir) != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (f *fsStore) ListDatasets(_ context.Context) ([]DatasetPath, error) {
	buckets, err := listDirs(f.root)
	if err != nil {
		return nil, err
	}
	var out []DatasetPath
	for _, bucket := range buckets {
		names, err := listDirs(filepath.Join(f.root, bucket))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			out = append(out, DatasetPath{Bucket: bucket, Name: name})
		}
	}
	return out, nil
}

func (f *fsStore) ListPartitions(_ context.Context, path DatasetPath) ([]string, error) {
	if !validComponent(path.Bucket) || !validComponent(path.Name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return listDirs(filepath.Join(f.root, path.Bucket, path.Name))
}

func (f *fsStore) ListObjects(_ context.Context, path PartitionPath) ([]ObjectEntry, error) {
	if !validComponent(path.Partition) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	dir := filepath.Join(f.root, path.Dataset.Bucket, path.Dataset.Name, path.Partition)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []ObjectEntry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, version, ok := parseVersionedKey(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, ObjectEntry{Key: key, Version: version, SizeBytes: info.Size()})
	}
	sortEntries(out)
	return out, nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func sortEntries(entries []ObjectEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Version < entries[j].Version
	})
}

// -----------------------------------------------------------------------------
// Memory store
// -----------------------------------------------------------------------------

// memoryStore holds object versions in a flat map keyed by the same layout
// the filesystem store uses on disk. Safe for concurrent use.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an in-memory store, mostly useful for tests and
// dry runs.
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func memoryKey(path ObjectPath, version Version) (string, error) {
	parts, err := objectComponents(path)
	if err != nil {
		return "", err
	}
	parts[len(parts)-1] = versionedKey(path.Key, version)
	return strings.Join(parts, "/"), nil
}

func (m *memoryStore) Read(_ context.Context, path ObjectPath, version Version) ([]byte, error) {
	key, err := memoryKey(path, version)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, path, version)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *memoryStore) Write(_ context.Context, path ObjectPath, version Version, data []byte) error {
	key, err := memoryKey(path, version)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; ok {
		return fmt.Errorf("%w: %s@%s", ErrVersionExists, path, version)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[key] = stored
	return nil
}

func (m *memoryStore) Delete(_ context.Context, path ObjectPath, version Version) error {
	key, err := memoryKey(path, version)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return fmt.Errorf("%w: %s@%s", ErrNotFound, path, version)
	}
	delete(m.data, key)
	return nil
}

func (m *memoryStore) ListDatasets(_ context.Context) ([]DatasetPath, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[DatasetPath]struct{})
	for key := range m.data {
		parts := strings.SplitN(key, "/", 3)
		if len(parts) < 3 {
			continue
		}
		seen[DatasetPath{Bucket: parts[0], Name: parts[1]}] = struct{}{}
	}
	out := make([]DatasetPath, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (m *memoryStore) ListPartitions(_ context.Context, path DatasetPath) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := path.Bucket + "/" + path.Name + "/"
	seen := make(map[string]struct{})
	for key := range m.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.SplitN(key[len(prefix):], "/", 2)
		if len(rest) == 2 {
			seen[rest[0]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for partition := range seen {
		out = append(out, partition)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memoryStore) ListObjects(_ context.Context, path PartitionPath) ([]ObjectEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := path.Dataset.Bucket + "/" + path.Dataset.Name + "/" + path.Partition + "/"
	var out []ObjectEntry
	for key, data := range m.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := key[len(prefix):]
		if strings.Contains(name, "/") {
			continue
		}
		objectKey, version, ok := parseVersionedKey(name)
		if !ok {
			continue
		}
		out = append(out, ObjectEntry{Key: objectKey, Version: version, SizeBytes: int64(len(data))})
	}
	sortEntries(out)
	return out, nil
}
