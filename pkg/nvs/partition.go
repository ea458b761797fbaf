package nvs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the current partition format version.
const FormatVersion = 2

// partitionMagic marks a file as a partition.
const partitionMagic = "TNVS"

// Partition errors.
var (
	ErrNoFreePages     = errors.New("nvs: partition has no free pages")
	ErrNewVersionFound = errors.New("nvs: partition contains data in a new format")
)

// NeedsErase reports whether err is recovered by erasing the partition and
// initializing it again.
func NeedsErase(err error) bool {
	return errors.Is(err, ErrNoFreePages) || errors.Is(err, ErrNewVersionFound)
}

// header is the CBOR record at the start of a partition file.
type header struct {
	Magic       string    `cbor:"1,keyasint"`
	Version     int       `cbor:"2,keyasint"`
	FormattedAt time.Time `cbor:"3,keyasint"`
}

// Partition is a file-backed storage partition.
type Partition struct {
	mu          sync.Mutex
	path        string
	version     int
	initialized bool
}

// NewPartition returns a partition stored at path using FormatVersion.
func NewPartition(path string) *Partition {
	return NewPartitionWithVersion(path, FormatVersion)
}

// NewPartitionWithVersion returns a partition that expects the given format
// version.
func NewPartitionWithVersion(path string, version int) *Partition {
	return &Partition{path: path, version: version}
}

// Path returns the partition file path.
func (p *Partition) Path() string {
	return p.path
}

// Init opens the partition, formatting it if it does not exist yet.
func (p *Partition) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		if err := p.format(); err != nil {
			return err
		}
		p.initialized = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("nvs: read %s: %w", p.path, err)
	}

	var h header
	if err := cbor.NewDecoder(bytes.NewReader(data)).Decode(&h); err != nil || h.Magic != partitionMagic {
		return fmt.Errorf("%w: %s: bad header", ErrNoFreePages, p.path)
	}
	if h.Version != p.version {
		return fmt.Errorf("%w: %s: version %d, want %d", ErrNewVersionFound, p.path, h.Version, p.version)
	}

	p.initialized = true
	return nil
}

// Erase wipes the partition. The next Init formats it again.
func (p *Partition) Erase() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.initialized = false
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("nvs: erase %s: %w", p.path, err)
	}
	return nil
}

// Initialized reports whether the last Init succeeded.
func (p *Partition) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *Partition) format() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("nvs: format %s: %w", p.path, err)
	}

	data, err := cbor.Marshal(header{
		Magic:       partitionMagic,
		Version:     p.version,
		FormattedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("nvs: format %s: %w", p.path, err)
	}

	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("nvs: format %s: %w", p.path, err)
	}
	return nil
}
