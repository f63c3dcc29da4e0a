package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

const formatVersion = 1

type persisted struct {
	Version   int
	Dimension int
	Entries   []Entry
	Vectors   [][]float32
}

func encode(entries []Entry, vectors [][]float32) ([]byte, error) {
	p := persisted{
		Version: formatVersion,
		Entries: entries,
		Vectors: vectors,
	}
	if len(vectors) > 0 {
		p.Dimension = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != p.Dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), p.Dimension)
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&p); err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) ([]Entry, [][]float32, error) {
	var p persisted
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if p.Version != formatVersion {
		return nil, nil, fmt.Errorf("unsupported index format version %d", p.Version)
	}
	if len(p.Entries) != len(p.Vectors) {
		return nil, nil, fmt.Errorf("corrupt index: %d entries, %d vectors", len(p.Entries), len(p.Vectors))
	}
	return p.Entries, p.Vectors, nil
}
