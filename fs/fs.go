package fs

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/pkg/errors"
)

const (
	MaxFilenameLength = 32
	MaxEntries        = 32
	BlockSize         = 512
	MaxBlocksPerFile  = 8
	MaxFileSize       = BlockSize * MaxBlocksPerFile

	// RootDir is the entry index of the root directory, created at
	// init and never deleted.
	RootDir = 0
)

var (
	ErrExists        = errors.New("file already exists")
	ErrNotFound      = errors.New("file not found")
	ErrNameTooLong   = errors.New("file name too long")
	ErrTooLarge      = errors.New("file too large")
	ErrCorrupted     = errors.New("file corrupted")
	ErrBadHandle     = errors.New("invalid file handle")
	ErrNotFile       = errors.New("not a file")
	ErrNotDirectory  = errors.New("not a directory")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrTableFull     = errors.New("file system full")
	ErrNoSpace       = errors.New("no space left")
	ErrArenaTooSmall = errors.New("data arena smaller than one block")
)

// EntryType distinguishes files from directories.
type EntryType uint8

const (
	TypeFile EntryType = iota
	TypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Entry is one slot in the fixed file table. Directories share the
// layout; they just never carry blocks.
type Entry struct {
	Name   string
	Size   uint32
	Type   EntryType
	Parent int

	blocks     [MaxBlocksPerFile]uint32
	blockCount uint32
	used       bool
}

// FileSystem is an in-memory block-allocated file system over a
// caller-supplied arena. Blocks are handed out linearly; frees only
// rewind the watermark when the freed run sits at the end.
type FileSystem struct {
	mu sync.Mutex

	entries    [MaxEntries]Entry
	entryCount int

	nextFreeBlock uint32
	totalBlocks   uint32
	data          []byte

	// lookups caches (parent, name) -> index, invalidated on delete
	// and format.
	lookups *lru.ARCCache
}

func New(arena []byte) (*FileSystem, error) {
	if len(arena) < BlockSize {
		return nil, ErrArenaTooSmall
	}

	cache, err := lru.NewARC(128)
	if err != nil {
		return nil, err
	}

	f := &FileSystem{
		data:        arena,
		totalBlocks: uint32(len(arena) / BlockSize),
		lookups:     cache,
	}

	if err := f.initRoot(); err != nil {
		return nil, err
	}

	log.L.Debug("fs-init", "blocks", f.totalBlocks)

	return f, nil
}

func (f *FileSystem) initRoot() error {
	f.entries[RootDir] = Entry{
		Name:   "/",
		Type:   TypeDirectory,
		Parent: RootDir,
		used:   true,
	}
	f.entryCount = 1

	return nil
}

// Format clears every entry and the block watermark, then recreates
// the root directory.
func (f *FileSystem) Format() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = [MaxEntries]Entry{}
	f.entryCount = 0
	f.nextFreeBlock = 0
	f.lookups.Purge()

	return f.initRoot()
}

func cacheKey(parent int, name string) string {
	return fmt.Sprintf("%d/%s", parent, name)
}

// checkDir must be called with mu held.
func (f *FileSystem) checkDir(dir int) error {
	if dir < 0 || dir >= MaxEntries || !f.entries[dir].used {
		return errors.Wrapf(ErrBadHandle, "directory index: %d", dir)
	}

	if f.entries[dir].Type != TypeDirectory {
		return ErrNotDirectory
	}

	return nil
}

// Find returns the index of name inside the parent directory.
func (f *FileSystem) Find(name string, parent int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.find(name, parent)
}

// find must be called with mu held.
func (f *FileSystem) find(name string, parent int) (int, error) {
	if err := f.checkDir(parent); err != nil {
		return -1, err
	}

	key := cacheKey(parent, name)

	if val, ok := f.lookups.Get(key); ok {
		return val.(int), nil
	}

	for i := 0; i < MaxEntries; i++ {
		e := &f.entries[i]

		if e.used && e.Parent == parent && e.Name == name && i != RootDir {
			f.lookups.Add(key, i)
			return i, nil
		}
	}

	return -1, errors.Wrapf(ErrNotFound, "name: %s", name)
}

// Stat returns a copy of the entry at index.
func (f *FileSystem) Stat(index int) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index < 0 || index >= MaxEntries || !f.entries[index].used {
		return Entry{}, errors.Wrapf(ErrBadHandle, "index: %d", index)
	}

	return f.entries[index], nil
}

// List returns copies of the entries directly inside dir.
func (f *FileSystem) List(dir int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkDir(dir); err != nil {
		return nil, err
	}

	var out []Entry

	for i := 0; i < MaxEntries; i++ {
		if i == RootDir {
			continue
		}

		if f.entries[i].used && f.entries[i].Parent == dir {
			out = append(out, f.entries[i])
		}
	}

	return out, nil
}

// EntryCount reports live entries, the root included.
func (f *FileSystem) EntryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.entryCount
}

func (f *FileSystem) TotalBlocks() uint32 {
	return f.totalBlocks
}
