package extractor

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// Rand picks an index in [0, n).
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// CookiePicker chooses a cookie file at random from a directory.
type CookiePicker struct {
	dir  string
	rand Rand
}

// NewCookiePicker creates a picker over dir. A nil r uses the global source.
func NewCookiePicker(dir string, r Rand) *CookiePicker {
	if r == nil {
		r = globalRand{}
	}
	return &CookiePicker{dir: dir, rand: r}
}

// Files lists the regular files in the cookie directory, sorted by name.
func (p *CookiePicker) Files() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(p.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Pick returns one cookie file chosen uniformly at random.
func (p *CookiePicker) Pick() (string, error) {
	files, err := p.Files()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", domain.ErrNoCookies
	}
	return files[p.rand.IntN(len(files))], nil
}
