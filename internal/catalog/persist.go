package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bfengine/assetpipe/internal/asset"
)

// flushInterval is the auto-flush cadence.
const flushInterval = 15 * time.Second

// document is the on-disk catalog layout: one JSON object holding the asset
// table and the flattened compilation history.
type document struct {
	Assets       asset.List          `json:"assets"`
	Compilations []asset.Compilation `json:"compilations"`
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	for _, a := range doc.Assets {
		c.assets[a.Common().ID] = a
	}
	recs := doc.Compilations
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	for _, rec := range recs {
		c.compilations[rec.ID] = append(c.compilations[rec.ID], rec)
	}
	return nil
}

// snapshot serializes the current tables under their read locks.
func (c *Catalog) snapshot() ([]byte, error) {
	doc := document{Assets: c.All()}
	c.cmu.RLock()
	for _, recs := range c.compilations {
		doc.Compilations = append(doc.Compilations, recs...)
	}
	c.cmu.RUnlock()
	sort.SliceStable(doc.Compilations, func(i, j int) bool {
		return doc.Compilations[i].Timestamp.Before(doc.Compilations[j].Timestamp)
	})
	return json.MarshalIndent(doc, "", "  ")
}

// Flush writes the catalog document and the name=identifier side file. The
// document write is atomic (temp file + rename); the side file is rewritten
// in full and is allowed to be briefly inconsistent with the document.
//
// The dirty flag is cleared before the snapshot is taken: a mutation racing
// the write then re-marks the catalog for the next flush instead of being
// wiped while still unpersisted. Any failure re-sets the flag.
func (c *Catalog) Flush() error {
	c.dirty.Store(false)
	data, err := c.snapshot()
	if err != nil {
		c.dirty.Store(true)
		return fmt.Errorf("serializing catalog: %w", err)
	}
	if err := writeAtomic(c.path, data); err != nil {
		c.dirty.Store(true)
		return fmt.Errorf("writing catalog: %w", err)
	}
	if c.sidePath != "" {
		if err := c.writeSideFile(); err != nil {
			c.dirty.Store(true)
			return fmt.Errorf("writing side file: %w", err)
		}
	}
	return nil
}

// writeSideFile dumps one "name=identifier" line per asset. Duplicate names
// are written as-is; consumers resolve the first match.
func (c *Catalog) writeSideFile() error {
	var b strings.Builder
	for _, a := range c.All() {
		fmt.Fprintf(&b, "%s=%s\n", a.Common().Name, a.Common().ID)
	}
	return os.WriteFile(c.sidePath, []byte(b.String()), 0o644)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RunAutoFlush flushes the catalog every flushInterval while it is dirty.
// Failed flushes are logged and leave the dirty flag set, so the next tick
// retries. Blocks until ctx is done; performs a final flush on shutdown.
func (c *Catalog) RunAutoFlush(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if c.dirty.Load() {
				if err := c.Flush(); err != nil {
					slog.Warn("Final catalog flush failed", "err", err)
				}
			}
			return
		case <-ticker.C:
			if !c.dirty.Load() {
				continue
			}
			if err := c.Flush(); err != nil {
				slog.Warn("Catalog flush failed, will retry", "err", err)
			}
		}
	}
}
