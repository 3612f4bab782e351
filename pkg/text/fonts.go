// fonts.go - Font resolution with search paths, a parsed-font cache and
// embedded fallbacks. Resolution never fails: the last resort is the
// basicfont 7x13 bitmap face.
package text

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/xob0t/ReelStencil/internal/pkg/logger"
)

// Well-known system fonts tried after the requested and default fonts.
var (
	systemRegular = []string{"DejaVuSans", "LiberationSans-Regular", "Arial", "Helvetica", "FreeSans"}
	systemBold    = []string{"DejaVuSans-Bold", "LiberationSans-Bold", "Arial Bold", "Arial-BoldMT", "FreeSansBold"}
)

// FontCache holds parsed fonts keyed by path (or "go:regular"/"go:bold"
// for embedded fonts). It is safe for concurrent use.
type FontCache struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
}

// NewFontCache creates an empty cache.
func NewFontCache() *FontCache {
	return &FontCache{fonts: make(map[string]*opentype.Font)}
}

// GetOrCreate returns the font cached under key, parsing it with create on
// first use. Failed parses are not cached.
func (c *FontCache) GetOrCreate(key string, create func() (*opentype.Font, error)) (*opentype.Font, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.fonts[key]; ok {
		return f, nil
	}
	f, err := create()
	if err != nil {
		return nil, err
	}
	c.fonts[key] = f
	return f, nil
}

// Len reports how many fonts are cached.
func (c *FontCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fonts)
}

// FontOptions configures a FontManager.
type FontOptions struct {
	// Default is tried when a style names no font or its font is missing.
	Default string
	// SearchPaths are directories scanned (recursively) for font files.
	SearchPaths []string
	// Cache is shared between managers; nil creates a private cache.
	Cache *FontCache
	Log   *logger.Logger
}

// FontManager resolves font names to faces.
type FontManager struct {
	opts FontOptions
	log  *logger.Logger

	indexOnce sync.Once
	index     map[string]string // lower-case base name without extension → path
}

// NewFontManager creates a font manager.
func NewFontManager(opts FontOptions) *FontManager {
	if opts.Cache == nil {
		opts.Cache = NewFontCache()
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &FontManager{opts: opts, log: log.WithComponent("fonts")}
}

// Face returns a new face for name at size points. name may be a file path,
// a file name or a base name found under the search paths. Faces are not
// safe for concurrent use, so every call returns a fresh one.
func (fm *FontManager) Face(name string, size float64, bold bool) font.Face {
	if size <= 0 {
		size = DefaultFontSize
	}

	for _, candidate := range fm.candidates(name, bold) {
		path := fm.locate(candidate)
		if path == "" {
			continue
		}
		f, err := fm.opts.Cache.GetOrCreate(path, func() (*opentype.Font, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return opentype.Parse(data)
		})
		if err != nil {
			fm.log.Warn("could not load font", "path", path, "error", err)
			continue
		}
		if face, err := newFace(f, size); err == nil {
			return face
		}
	}

	if name != "" {
		fm.log.Debug("font not found, using embedded Go font", "font", name)
	}

	key, data := "go:regular", goregular.TTF
	if bold {
		key, data = "go:bold", gobold.TTF
	}
	f, err := fm.opts.Cache.GetOrCreate(key, func() (*opentype.Font, error) {
		return opentype.Parse(data)
	})
	if err == nil {
		if face, err := newFace(f, size); err == nil {
			return face
		}
	}

	fm.log.Warn("embedded font unavailable, using bitmap face", "error", err)
	return basicfont.Face7x13
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (fm *FontManager) candidates(name string, bold bool) []string {
	var out []string
	if name != "" {
		out = append(out, name)
	}
	if fm.opts.Default != "" && fm.opts.Default != name {
		out = append(out, fm.opts.Default)
	}
	if len(fm.opts.SearchPaths) == 0 {
		return out
	}
	if bold {
		return append(out, systemBold...)
	}
	return append(out, systemRegular...)
}

// locate maps a candidate to an existing font file, or "".
func (fm *FontManager) locate(candidate string) string {
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		return candidate
	}
	if strings.ContainsRune(candidate, filepath.Separator) {
		return ""
	}

	fm.indexOnce.Do(fm.buildIndex)
	key := strings.ToLower(strings.TrimSuffix(candidate, filepath.Ext(candidate)))
	if ext := strings.ToLower(filepath.Ext(candidate)); ext != "" && ext != ".ttf" && ext != ".otf" {
		key = strings.ToLower(candidate)
	}
	return fm.index[key]
}

func (fm *FontManager) buildIndex() {
	fm.index = make(map[string]string)
	for _, dir := range fm.opts.SearchPaths {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".ttf" && ext != ".otf" {
				return nil
			}
			key := strings.ToLower(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
			if _, seen := fm.index[key]; !seen {
				fm.index[key] = path
			}
			return nil
		})
	}
	fm.log.Debug("font index built", "fonts", len(fm.index))
}
