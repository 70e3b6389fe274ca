package main

import (
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
	"github.com/wz18207/bemaniutils-gfdm/internal/imaging"
	"github.com/wz18207/bemaniutils-gfdm/pkg"
)

var updateOut string

func init() {
	updateTextureCmd := &cobra.Command{
		Use:   "update-texture <container> <texture> <image>",
		Short: "Replace a texture's pixels and write a new container",
		Args:  cobra.ExactArgs(3),
		RunE:  runUpdateTexture,
	}
	updateSpriteCmd := &cobra.Command{
		Use:   "update-sprite <container> <texture> <sprite> <image>",
		Short: "Paste new pixels over one sprite region and write a new container",
		Args:  cobra.ExactArgs(4),
		RunE:  runUpdateSprite,
	}
	for _, cmd := range []*cobra.Command{updateTextureCmd, updateSpriteCmd} {
		cmd.Flags().StringVar(&updateOut, "out", "", "Path for the rewritten container (required)")
		if err := cmd.MarkFlagRequired("out"); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(updateTextureCmd, updateSpriteCmd)
}

func loadImage(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()
	return imaging.Decode(fh)
}

func runUpdateTexture(cmd *cobra.Command, args []string) error {
	img, err := loadImage(args[2])
	if err != nil {
		return err
	}
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}

	if err := file.UpdateTexture(args[1], img); err != nil {
		return err
	}
	if err := pkg.SaveContainer(file, updateOut); err != nil {
		return err
	}
	logger.Info("updated texture", "name", args[1], "output", updateOut)
	return nil
}

func runUpdateSprite(cmd *cobra.Command, args []string) error {
	img, err := loadImage(args[3])
	if err != nil {
		return err
	}
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}

	if err := file.UpdateSprite(args[1], args[2], img); err != nil {
		return err
	}
	if err := pkg.SaveContainer(file, updateOut); err != nil {
		return err
	}
	logger.Info("updated sprite", "texture", args[1], "sprite", args[2], "output", updateOut)
	return nil
}
