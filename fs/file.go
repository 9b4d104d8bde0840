package fs

import (
	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/pkg/errors"
)

// allocBlocks hands out count sequential block numbers. Must be called
// with mu held.
func (f *FileSystem) allocBlocks(dst []uint32, count uint32) error {
	if f.nextFreeBlock+count > f.totalBlocks {
		return ErrNoSpace
	}

	for i := uint32(0); i < count; i++ {
		dst[i] = f.nextFreeBlock
		f.nextFreeBlock++
	}

	return nil
}

// freeBlocks rewinds the watermark when the freed run sits at the end
// of the allocated area; interior runs stay until the next Format.
// Must be called with mu held.
func (f *FileSystem) freeBlocks(blocks []uint32) {
	n := len(blocks)
	if n > 0 && blocks[n-1]+1 == f.nextFreeBlock {
		f.nextFreeBlock = blocks[0]
	}
}

// newEntry validates the name and parent and claims a free table slot.
// Must be called with mu held.
func (f *FileSystem) newEntry(name string, parent int, typ EntryType) (int, error) {
	if name == "" || len(name) >= MaxFilenameLength {
		return -1, errors.Wrapf(ErrNameTooLong, "name: %q", name)
	}

	if err := f.checkDir(parent); err != nil {
		return -1, err
	}

	if _, err := f.find(name, parent); err == nil {
		return -1, errors.Wrapf(ErrExists, "name: %s", name)
	}

	for i := 0; i < MaxEntries; i++ {
		if f.entries[i].used {
			continue
		}

		f.entries[i] = Entry{
			Name:   name,
			Type:   typ,
			Parent: parent,
			used:   true,
		}

		f.entryCount++

		return i, nil
	}

	return -1, ErrTableFull
}

// CreateFile adds an empty file to the parent directory and returns
// its index.
func (f *FileSystem) CreateFile(name string, parent int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	index, err := f.newEntry(name, parent, TypeFile)
	if err != nil {
		return -1, err
	}

	log.L.Trace("fs-create", "name", name, "index", index)

	return index, nil
}

// Mkdir adds an empty directory to the parent directory and returns
// its index.
func (f *FileSystem) Mkdir(name string, parent int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	index, err := f.newEntry(name, parent, TypeDirectory)
	if err != nil {
		return -1, err
	}

	log.L.Trace("fs-mkdir", "name", name, "index", index)

	return index, nil
}

// checkFile must be called with mu held.
func (f *FileSystem) checkFile(index int) (*Entry, error) {
	if index < 0 || index >= MaxEntries || !f.entries[index].used {
		return nil, errors.Wrapf(ErrBadHandle, "index: %d", index)
	}

	e := &f.entries[index]
	if e.Type != TypeFile {
		return nil, ErrNotFile
	}

	return e, nil
}

// Read copies file data starting at offset into buf. Reads past the
// end of the file are truncated; an offset at or past the end reads
// zero bytes.
func (f *FileSystem) Read(index int, buf []byte, offset uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(buf) == 0 {
		return 0, nil
	}

	e, err := f.checkFile(index)
	if err != nil {
		return 0, err
	}

	if offset >= e.Size {
		return 0, nil
	}

	size := uint32(len(buf))
	if offset+size > e.Size {
		size = e.Size - offset
	}

	read := uint32(0)
	cur := offset

	for read < size {
		blockIndex := cur / BlockSize
		blockOffset := cur % BlockSize

		chunk := BlockSize - blockOffset
		if size-read < chunk {
			chunk = size - read
		}

		if blockIndex >= e.blockCount {
			return int(read), ErrCorrupted
		}

		block := e.blocks[blockIndex]
		if block >= f.totalBlocks {
			return int(read), ErrCorrupted
		}

		data := f.data[block*BlockSize:]
		copy(buf[read:read+chunk], data[blockOffset:blockOffset+chunk])

		read += chunk
		cur += chunk
	}

	return int(read), nil
}

// Write copies data into the file at offset, growing it by whole
// blocks as needed. The offset must lie within the current contents
// or right at their end; growth past the file size cap is rejected
// before any blocks are claimed.
func (f *FileSystem) Write(index int, data []byte, offset uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return 0, nil
	}

	e, err := f.checkFile(index)
	if err != nil {
		return 0, err
	}

	size := uint32(len(data))

	// Writes start inside the current contents or right at the end;
	// with offset bounded there is no wraparound in offset+size.
	if offset > e.Size {
		return 0, errors.Wrapf(ErrTooLarge, "offset past end of file: %d", offset)
	}

	if size > MaxFileSize-offset {
		return 0, errors.Wrapf(ErrTooLarge, "bytes: %d at offset %d", size, offset)
	}

	required := (offset + size + BlockSize - 1) / BlockSize

	if required > e.blockCount {
		additional := required - e.blockCount

		if err := f.allocBlocks(e.blocks[e.blockCount:], additional); err != nil {
			return 0, err
		}

		e.blockCount = required
	}

	written := uint32(0)
	cur := offset

	for written < size {
		blockIndex := cur / BlockSize
		blockOffset := cur % BlockSize

		chunk := BlockSize - blockOffset
		if size-written < chunk {
			chunk = size - written
		}

		block := e.blocks[blockIndex]
		if block >= f.totalBlocks {
			return int(written), ErrCorrupted
		}

		dst := f.data[block*BlockSize:]
		copy(dst[blockOffset:blockOffset+chunk], data[written:written+chunk])

		written += chunk
		cur += chunk
	}

	if cur > e.Size {
		e.Size = cur
	}

	return int(written), nil
}

// Delete removes a file or an empty directory and releases its table
// slot.
func (f *FileSystem) Delete(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index < 0 || index >= MaxEntries || !f.entries[index].used {
		return errors.Wrapf(ErrBadHandle, "index: %d", index)
	}

	if index == RootDir {
		return ErrNotEmpty
	}

	e := &f.entries[index]

	if e.Type == TypeDirectory {
		for i := 0; i < MaxEntries; i++ {
			if i != index && f.entries[i].used && f.entries[i].Parent == index {
				return ErrNotEmpty
			}
		}
	}

	f.freeBlocks(e.blocks[:e.blockCount])
	f.lookups.Remove(cacheKey(e.Parent, e.Name))

	*e = Entry{}
	f.entryCount--

	log.L.Trace("fs-delete", "index", index)

	return nil
}
