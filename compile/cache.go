package compile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/snowdamiz/lmlang/graph"
)

// ObjectCache stores one compiled object file per function, keyed by
// function id + content hash + compile settings, so incremental
// compilation can skip functions whose hash and settings are
// unchanged. The on-disk naming scheme (component parts joined with
// '-', random suffix for write-then-rename atomicity) mirrors the
// teacher's transaction-log backup file naming
// (core/transaction.go's generateBackupPath/randomHexString), adapted
// here to address cached objects instead of file backups.
type ObjectCache struct {
	dir string
}

// NewObjectCache opens (creating if needed) an object cache rooted at dir.
func NewObjectCache(dir string) (*ObjectCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("compile: create cache dir: %w", err)
	}
	return &ObjectCache{dir: dir}, nil
}

func (c *ObjectCache) keyPath(fn graph.FunctionId, h Hash, s Settings) string {
	name := fmt.Sprintf("fn-%d-%s-o%d-%s.o", fn, h.String(), s.OptLevel, settingsDigest(s))
	return filepath.Join(c.dir, name)
}

func settingsDigest(s Settings) string {
	return fmt.Sprintf("%s-%v", sanitizeTriple(s.TargetTriple), s.DebugSymbols)
}

func sanitizeTriple(triple string) string {
	out := make([]rune, 0, len(triple))
	for _, r := range triple {
		if r == '/' || r == ' ' {
			r = '_'
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return "default"
	}
	return string(out)
}

// Lookup returns the cached object path for (fn, hash, settings) if present.
func (c *ObjectCache) Lookup(fn graph.FunctionId, h Hash, s Settings) (string, bool) {
	path := c.keyPath(fn, h, s)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Store writes object bytes to the cache atomically (write to a
// randomized temp name, then rename), returning the final path.
func (c *ObjectCache) Store(fn graph.FunctionId, h Hash, s Settings, object []byte) (string, error) {
	final := c.keyPath(fn, h, s)
	tmp := final + "." + randomSuffix(8) + ".tmp"
	if err := os.WriteFile(tmp, object, 0o644); err != nil {
		return "", fmt.Errorf("compile: write object: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("compile: finalize object: %w", err)
	}
	return final, nil
}

// InvalidateAll removes every cached object, used when settings change.
func (c *ObjectCache) InvalidateAll() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		os.Remove(filepath.Join(c.dir, e.Name()))
	}
	return nil
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "fallback"
	}
	return hex.EncodeToString(buf)
}
