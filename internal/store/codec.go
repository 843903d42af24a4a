package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/entry"
)

// Record is the kind-specific part of a persisted node.
type Record struct {
	Size    int64
	ModTime time.Time
	Data    []byte
}

// Codec persists one concrete leaf kind. Encode reports false for entries of
// other kinds. Folders are structural and handled by the store itself.
type Codec struct {
	Encode func(e entry.Entry) (Record, bool)
	Decode func(name string, r Record) (entry.Entry, error)
}

var (
	codecMu    sync.RWMutex
	codecs     = make(map[string]Codec)
	codecOrder []string
)

// Register adds a codec for kind. New entry kinds become persistable without
// changes to this package. Registering a kind twice replaces the codec.
func Register(kind string, c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if _, ok := codecs[kind]; !ok {
		codecOrder = append(codecOrder, kind)
	}
	codecs[kind] = c
}

func encode(e entry.Entry) (string, Record, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	for _, kind := range codecOrder {
		if r, ok := codecs[kind].Encode(e); ok {
			return kind, r, nil
		}
	}
	return "", Record{}, fmt.Errorf("encode %q (%T): %w", e.Name(), e, ErrUnknownKind)
}

func decode(kind, name string, r Record) (entry.Entry, error) {
	codecMu.RLock()
	c, ok := codecs[kind]
	codecMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decode %q: kind %q: %w", name, kind, ErrUnknownKind)
	}
	return c.Decode(name, r)
}

func init() {
	Register(api.KindFile, Codec{
		Encode: func(e entry.Entry) (Record, bool) {
			f, ok := e.(*entry.File)
			if !ok {
				return Record{}, false
			}
			return Record{Size: f.Size(), ModTime: f.ModTime(), Data: f.Data()}, true
		},
		Decode: func(name string, r Record) (entry.Entry, error) {
			if int64(len(r.Data)) != r.Size {
				return nil, fmt.Errorf("file %q: size %d, record holds %d bytes: %w", name, r.Size, len(r.Data), ErrCorrupt)
			}
			f := entry.NewFile(name, r.Data)
			f.SetModTime(r.ModTime)
			return f, nil
		},
	})
	Register(api.KindSymlink, Codec{
		Encode: func(e entry.Entry) (Record, bool) {
			s, ok := e.(*entry.Symlink)
			if !ok {
				return Record{}, false
			}
			return Record{Size: int64(len(s.Target())), Data: []byte(s.Target())}, true
		},
		Decode: func(name string, r Record) (entry.Entry, error) {
			return entry.NewSymlink(name, string(r.Data)), nil
		},
	})
}
