// Package ingest converts between arbor trees and JSON: arbitrary JSON data
// (imported through ojg, optionally narrowed by a JSONPath selector) and the
// lossless api.Document form.
package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/arbor/internal/entry"
)

// FromJSON builds a folder named name from JSON data. Objects become folders,
// arrays become folders keyed by index, strings become files holding the raw
// string and other scalars become files holding their JSON text.
//
// A non-empty selector is a JSONPath expression evaluated against the
// document; each match becomes a child of the returned folder, named by its
// match index.
func FromJSON(name string, data []byte, selector string, opts ...entry.Option) (*entry.Folder, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if selector == "" {
		root := entry.NewFolder(name, opts...)
		fill(root, doc, opts)
		return root, nil
	}

	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	root := entry.NewFolder(name, opts...)
	for i, match := range x.Get(doc) {
		root.InsertChild(build(strconv.Itoa(i), match, opts))
	}
	return root, nil
}

// fill populates dst with the contents of a container value. A scalar
// document has no children to spread, so it becomes a single "value" file.
func fill(dst *entry.Folder, v any, opts []entry.Option) {
	switch v.(type) {
	case map[string]any, []any:
		src := build(dst.Name(), v, opts).(*entry.Folder)
		for _, c := range src.Children() {
			dst.InsertChild(c)
		}
	default:
		dst.InsertChild(build("value", v, opts))
	}
}

func build(name string, v any, opts []entry.Option) entry.Entry {
	switch t := v.(type) {
	case map[string]any:
		f := entry.NewFolder(name, opts...)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		names := segmentNames(keys)
		for _, k := range keys {
			f.InsertChild(build(names[k], t[k], opts))
		}
		return f
	case []any:
		f := entry.NewFolder(name, opts...)
		for i, item := range t {
			f.InsertChild(build(strconv.Itoa(i), item, opts))
		}
		return f
	case string:
		return entry.NewFile(name, []byte(t))
	default:
		return entry.NewFile(name, []byte(oj.JSON(t)))
	}
}

// segmentNames assigns each object key a distinct path segment. Keys that
// are already valid segments keep their name; rewritten keys that collide
// with a name already taken get a "~N" suffix, counting from 1. keys must be
// sorted so the assignment is deterministic.
func segmentNames(keys []string) map[string]string {
	names := make(map[string]string, len(keys))
	used := make(map[string]bool, len(keys))
	var rewritten []string
	for _, k := range keys {
		if segmentName(k) == k {
			names[k] = k
			used[k] = true
		} else {
			rewritten = append(rewritten, k)
		}
	}
	for _, k := range rewritten {
		base := segmentName(k)
		name := base
		for n := 1; used[name]; n++ {
			name = base + "~" + strconv.Itoa(n)
		}
		names[k] = name
		used[name] = true
	}
	return names
}

// segmentName makes an object key usable as a single path segment.
func segmentName(k string) string {
	switch k {
	case "", ".", "..":
		return "_" + k
	}
	return strings.ReplaceAll(k, "/", "_")
}
