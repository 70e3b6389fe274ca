package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wz18207/bemaniutils-gfdm/internal/fsutil"
	"github.com/wz18207/bemaniutils-gfdm/internal/imaging"
)

var (
	exportDir    string
	exportFormat string
	exportThumb  int
	exportRaw    bool
)

func init() {
	exportCmd := &cobra.Command{
		Use:   "export <container>",
		Short: "Write every decodable texture out as an image file",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "Output directory (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "png", "Image format (png, bmp)")
	exportCmd.Flags().IntVar(&exportThumb, "thumb", 0, "Scale the longest side down to N pixels")
	exportCmd.Flags().BoolVar(&exportRaw, "raw", false, "Dump undecodable pixel payloads as .bin files")

	if err := exportCmd.MarkFlagRequired("out"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := imaging.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	file, err := openContainer(args[0])
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(exportDir); err != nil {
		return err
	}

	exported := 0
	for _, texture := range file.Textures {
		raster := texture.Raster()
		switch {
		case raster != nil:
			path := filepath.Join(exportDir, texture.Name+format.Ext())
			if err := writeImage(path, raster, format); err != nil {
				return err
			}
			logger.Info("exported texture", "name", texture.Name, "path", path)
			exported++
		case exportRaw:
			path := filepath.Join(exportDir, texture.Name+".bin")
			if err := fsutil.WriteFileAtomic(path, texture.Raw, 0o644); err != nil {
				return err
			}
			logger.Info("dumped raw texture payload", "name", texture.Name, "path", path)
			exported++
		default:
			logger.Warn("skipping undecodable texture",
				"name", texture.Name, "format", formatName(texture.Format))
		}
	}

	fmt.Printf("exported %d of %d textures\n", exported, len(file.Textures))
	return nil
}

func writeImage(path string, img *image.NRGBA, format imaging.Format) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := imaging.Encode(fh, img, format, exportThumb); err != nil {
		fh.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return fh.Close()
}
