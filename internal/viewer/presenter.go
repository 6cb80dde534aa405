package viewer

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bfengine/assetpipe/internal/asset"
)

// listingRow is the flattened per-asset shape used for YAML output.
type listingRow struct {
	ID        string `yaml:"id"`
	Type      string `yaml:"type"`
	Name      string `yaml:"name"`
	InputPath string `yaml:"input_path,omitempty"`
	Format    string `yaml:"format,omitempty"`
	UpdatedAt string `yaml:"updated_at"`
	Dirty     bool   `yaml:"dirty,omitempty"`
}

// PresentAssetsYAML writes the asset listing as YAML to w. dirty marks the
// identifiers currently in the dirty set.
func PresentAssetsYAML(w io.Writer, assets []asset.Asset, dirty map[string]bool) error {
	rows := make([]listingRow, 0, len(assets))
	for _, a := range assets {
		meta := a.Common()
		row := listingRow{
			ID:        meta.ID.String(),
			Type:      string(a.Kind()),
			Name:      meta.Name,
			UpdatedAt: meta.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Dirty:     dirty[meta.ID.String()],
		}
		if p, ok := a.SourcePath(); ok {
			row.InputPath = p
		}
		if img, ok := a.(*asset.Image); ok {
			row.Format = string(img.Format)
		}
		rows = append(rows, row)
	}
	data, err := yaml.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}
