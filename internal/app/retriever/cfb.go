package retriever

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
)

const rootEntryName = "Root Entry"

// storage is a compound file directory with its streams loaded in memory.
type storage struct {
	name     string
	streams  map[string][]byte
	children map[string]*storage
}

func newStorage(name string) *storage {
	return &storage{
		name:     name,
		streams:  make(map[string][]byte),
		children: make(map[string]*storage),
	}
}

// child returns the sub-storage called name, creating it when missing.
func (s *storage) child(name string) *storage {
	c, ok := s.children[name]
	if !ok {
		c = newStorage(name)
		s.children[name] = c
	}
	return c
}

func (s *storage) descend(path []string) *storage {
	cur := s
	for _, name := range path {
		cur = cur.child(name)
	}
	return cur
}

// childrenWithPrefix returns matching sub-storages sorted by name.
func (s *storage) childrenWithPrefix(prefix string) []*storage {
	var out []*storage
	for name, c := range s.children {
		if strings.HasPrefix(name, prefix) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// readCompoundFile loads every storage and stream of a compound file.
func readCompoundFile(r io.ReaderAt) (*storage, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}

	root := newStorage(rootEntryName)
	for {
		entry, err := doc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read directory entry: %w", err)
		}
		if len(entry.Path) == 0 && entry.Name == rootEntryName {
			continue
		}

		parent := root.descend(entry.Path)
		if entry.FileInfo().IsDir() {
			parent.child(entry.Name)
			continue
		}

		data, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", strings.Join(append(append([]string(nil), entry.Path...), entry.Name), "/"), err)
		}
		parent.streams[entry.Name] = data
	}

	return root, nil
}
