package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/kiroku/internal/models"
)

// snapshotVersion is bumped when the on-disk layout changes.
const snapshotVersion = 1

// Save persists the store to path so a restart does not force a full
// re-embed. Stale entries are skipped: their vectors are already invalid.
// Format: version (4), dimension sentinel per chunk is implicit in the vector
// length; per chunk: chunkID, noteID, noteTitle, text (each len-prefixed),
// chunkIndex (4), embeddedAt unix seconds (8), fingerprint (len-prefixed),
// vector length (4) and vector data.
func (s *Store) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	fresh := s.AllFresh()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint32(snapshotVersion)); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(fresh))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, c := range fresh {
		if err := writeChunk(w, c); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Load reads a snapshot from path and merges its chunks into the store.
// A missing file is not an error; the store is left unchanged.
func (s *Store) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		c, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", i, err)
		}
		s.Upsert(c)
	}
	return nil
}

func writeChunk(w io.Writer, c *models.NoteChunk) error {
	for _, field := range []string{c.ChunkID, c.NoteID, c.NoteTitle, c.Text, c.ContentFingerprint} {
		if err := writeString(w, field); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(c.ChunkIndex)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.EmbeddedAt.Unix()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Embedding))); err != nil {
		return err
	}
	buf := make([]byte, 4*len(c.Embedding))
	for i, v := range c.Embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readChunk(r io.Reader) (*models.NoteChunk, error) {
	var c models.NoteChunk
	for _, field := range []*string{&c.ChunkID, &c.NoteID, &c.NoteTitle, &c.Text, &c.ContentFingerprint} {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		*field = s
	}
	var idx uint32
	if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
		return nil, err
	}
	c.ChunkIndex = int(idx)
	var embeddedAt int64
	if err := binary.Read(r, binary.LittleEndian, &embeddedAt); err != nil {
		return nil, err
	}
	c.EmbeddedAt = time.Unix(embeddedAt, 0)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	c.Embedding = make([]float32, n)
	for i := range c.Embedding {
		c.Embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return &c, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
