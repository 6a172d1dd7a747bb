package zip

import (
	"archive/zip"
	"fmt"
	"io"
)

// Asset is one file destined for an archive.
type Asset struct {
	Filename string
	Data     []byte
}

// Archive writes the assets to w as a zip archive.
func Archive(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	for _, asset := range assets {
		fw, err := zw.Create(asset.Filename)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip: close: %w", err)
	}
	return nil
}
