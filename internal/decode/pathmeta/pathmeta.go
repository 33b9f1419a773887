// Package pathmeta recovers dataset metadata encoded in ancestor directory
// names, e.g. .../DOP/LV95/2015/<file>.
package pathmeta

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("no ancestor segment matches")

type Field int

const (
	DataType Field = iota
	Year
	CoordinateSystem
)

func (f Field) String() string {
	switch f {
	case DataType:
		return "DATATYPE"
	case Year:
		return "YEAR"
	case CoordinateSystem:
		return "COORDINATESYSTEM"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

func ParseField(s string) (Field, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DATATYPE":
		return DataType, nil
	case "YEAR":
		return Year, nil
	case "COORDINATESYSTEM":
		return CoordinateSystem, nil
	}
	return 0, fmt.Errorf("unknown path field %q", s)
}

var (
	dataTypes   = []string{"DOP", "DSM"}
	crsPrefixes = []string{"LV03", "LV95"}
)

func matches(f Field, segment string) bool {
	switch f {
	case DataType:
		for _, t := range dataTypes {
			if segment == t {
				return true
			}
		}
	case Year:
		if segment == "" {
			return false
		}
		for i := 0; i < len(segment); i++ {
			if segment[i] < '0' || segment[i] > '9' {
				return false
			}
		}
		return true
	case CoordinateSystem:
		up := strings.ToUpper(segment)
		for _, p := range crsPrefixes {
			if strings.HasPrefix(up, p) {
				return true
			}
		}
	}
	return false
}

// Resolve inspects the last segment of path and then each ancestor in turn,
// returning the first segment that satisfies the field predicate. The walk is
// bounded by the path depth.
func Resolve(path string, f Field) (string, error) {
	p := filepath.Clean(path)
	depth := strings.Count(p, string(filepath.Separator)) + 1

	for range depth {
		seg := filepath.Base(p)
		if matches(f, seg) {
			return seg, nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return "", fmt.Errorf("%s in %q: %w", f, path, ErrNotFound)
}

type cacheKey struct {
	dir   string
	field Field
}

type cached struct {
	value string
	err   error
}

// Resolver memoizes Resolve per (directory, field); files of one directory share ancestors.
type Resolver struct {
	mu    sync.Mutex
	cache *lru.Cache[cacheKey, cached]
}

func NewResolver(size int) *Resolver {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[cacheKey, cached](size)
	return &Resolver{cache: c}
}

func (r *Resolver) Resolve(dir string, f Field) (string, error) {
	k := cacheKey{dir: filepath.Clean(dir), field: f}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(k); ok {
		return v.value, v.err
	}
	v, err := Resolve(dir, f)
	r.cache.Add(k, cached{value: v, err: err})
	return v, err
}

func (r *Resolver) Len() int {
	return r.cache.Len()
}
