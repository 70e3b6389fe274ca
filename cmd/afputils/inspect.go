package main

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/wz18207/bemaniutils-gfdm/pkg"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/txp2"
)

var (
	infoJSON bool
	listJSON bool
)

// featureLabels names each understood feature bit for the info breakdown.
var featureLabels = []struct {
	bit  uint32
	name string
}{
	{txp2.FeatureTextures, "textures"},
	{txp2.FeatureTextureMap, "texture-map"},
	{txp2.FeatureLegacyLZ, "legacy-lz"},
	{txp2.FeatureRegions, "regions"},
	{txp2.FeatureRegionMap, "region-map"},
	{txp2.FeatureTextObfuscated, "text-obfuscation"},
	{txp2.FeatureUnknown1, "unknown1"},
	{txp2.FeatureUnknown1Map, "unknown1-map"},
	{txp2.FeatureUnknown2, "unknown2"},
	{txp2.FeatureUnknown2Map, "unknown2-map"},
	{txp2.FeatureEmptyBlock, "empty-block"},
	{txp2.FeatureTimelines, "timelines"},
	{txp2.FeatureTimelineMap, "timeline-map"},
	{txp2.FeatureShapes, "shapes"},
	{txp2.FeatureShapeMap, "shape-map"},
	{txp2.FeatureUnhandled, "unhandled"},
	{txp2.FeatureFontInfo, "font-info"},
	{txp2.FeatureSwapHeaders, "swap-headers"},
	{txp2.FeatureModernLZ, "modern-lz"},
}

func init() {
	infoCmd := &cobra.Command{
		Use:   "info <container>",
		Short: "Show container header fields and section counts",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Emit machine-readable JSON")

	listCmd := &cobra.Command{
		Use:   "list <container>",
		Short: "List every texture, region, timeline and shape",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit machine-readable JSON")

	coverageCmd := &cobra.Command{
		Use:   "coverage <container>",
		Short: "Report bytes the parser never consumed",
		Args:  cobra.ExactArgs(1),
		RunE:  runCoverage,
	}

	verifyCmd := &cobra.Command{
		Use:   "verify <container>",
		Short: "Parse, rewrite and compare a container against itself",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.VerifyContainerWithLogger(args[0], containerOptions(), logger)
		},
	}

	rootCmd.AddCommand(infoCmd, listCmd, coverageCmd, verifyCmd)
}

func featureNames(mask uint32) []string {
	names := []string{}
	for _, label := range featureLabels {
		if mask&label.bit != 0 {
			names = append(names, label.name)
		}
	}
	return names
}

func endianName(f *txp2.File) string {
	if f.Endian == binary.BigEndian {
		return "big"
	}
	return "little"
}

func formatName(format int) string {
	switch format {
	case txp2.PixelFormatRGB565:
		return "rgb565"
	case txp2.PixelFormatRGB888:
		return "rgb888"
	case txp2.PixelFormatBGR888:
		return "bgr888"
	case txp2.PixelFormatARGB1555:
		return "argb1555"
	case txp2.PixelFormatARGB8888:
		return "argb8888"
	case txp2.PixelFormatDXT1:
		return "dxt1"
	case txp2.PixelFormatDXT5:
		return "dxt5"
	case txp2.PixelFormatRGBA4444:
		return "rgba4444"
	case txp2.PixelFormatBGRA8888:
		return "bgra8888"
	default:
		return fmt.Sprintf("0x%02X", format)
	}
}

// tableName resolves an index through a name table, tolerating nil tables
// and indexes past the end.
func tableName(table *txp2.NameTable, index int) string {
	if table == nil || index >= len(table.Entries) {
		return ""
	}
	return table.Entries[index]
}

type containerSummary struct {
	Endian         string   `json:"endian"`
	FileFlags      string   `json:"file_flags"`
	Features       string   `json:"features"`
	FeatureNames   []string `json:"feature_names"`
	TextObfuscated bool     `json:"text_obfuscated"`
	LegacyLZ       bool     `json:"legacy_lz"`
	ModernLZ       bool     `json:"modern_lz"`
	ReadOnly       bool     `json:"read_only"`
	Textures       int      `json:"textures"`
	Regions        int      `json:"regions"`
	Timelines      int      `json:"timelines"`
	Shapes         int      `json:"shapes"`
	Unknown1       int      `json:"unknown1_records"`
	Unknown2       int      `json:"unknown2_records"`
	FontBytes      int      `json:"font_bytes"`
	UncoveredBytes int      `json:"uncovered_bytes"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}

	uncovered := 0
	for _, r := range file.Uncovered() {
		uncovered += r.End - r.Start
	}

	summary := containerSummary{
		Endian:         endianName(file),
		FileFlags:      fmt.Sprintf("%x", file.FileFlags),
		Features:       fmt.Sprintf("0x%08X", file.Features),
		FeatureNames:   featureNames(file.Features),
		TextObfuscated: file.TextObfuscated,
		LegacyLZ:       file.LegacyLZ,
		ModernLZ:       file.ModernLZ,
		ReadOnly:       file.ReadOnly(),
		Textures:       len(file.Textures),
		Regions:        len(file.Regions),
		Timelines:      len(file.Timelines),
		Shapes:         len(file.Shapes),
		Unknown1:       len(file.Unknown1),
		Unknown2:       len(file.Unknown2),
		FontBytes:      len(file.FontBlob),
		UncoveredBytes: uncovered,
	}

	if infoJSON {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("endian:     %s\n", summary.Endian)
	fmt.Printf("file flags: %s\n", summary.FileFlags)
	fmt.Printf("features:   %s (%s)\n", summary.Features, strings.Join(summary.FeatureNames, ", "))
	fmt.Printf("obfuscated: %v, legacy lz: %v, modern lz: %v, read-only: %v\n",
		summary.TextObfuscated, summary.LegacyLZ, summary.ModernLZ, summary.ReadOnly)
	fmt.Printf("textures:   %d\n", summary.Textures)
	fmt.Printf("regions:    %d\n", summary.Regions)
	fmt.Printf("timelines:  %d\n", summary.Timelines)
	fmt.Printf("shapes:     %d\n", summary.Shapes)
	if summary.Unknown1 > 0 || summary.Unknown2 > 0 {
		fmt.Printf("unknown:    %d + %d records\n", summary.Unknown1, summary.Unknown2)
	}
	if summary.FontBytes > 0 {
		fmt.Printf("font data:  %d bytes\n", summary.FontBytes)
	}
	fmt.Printf("uncovered:  %d bytes\n", summary.UncoveredBytes)
	return nil
}

type textureEntry struct {
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"`
	Decoded bool   `json:"decoded"`
}

type regionEntry struct {
	Name      string `json:"name,omitempty"`
	TextureNo int    `json:"texture"`
	Left      int    `json:"left"`
	Top       int    `json:"top"`
	Right     int    `json:"right"`
	Bottom    int    `json:"bottom"`
}

type namedBlob struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

type containerListing struct {
	Textures  []textureEntry `json:"textures"`
	Regions   []regionEntry  `json:"regions"`
	Timelines []namedBlob    `json:"timelines"`
	Shapes    []namedBlob    `json:"shapes"`
}

func runList(cmd *cobra.Command, args []string) error {
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}

	listing := containerListing{
		Textures:  []textureEntry{},
		Regions:   []regionEntry{},
		Timelines: []namedBlob{},
		Shapes:    []namedBlob{},
	}
	for _, texture := range file.Textures {
		listing.Textures = append(listing.Textures, textureEntry{
			Name:    texture.Name,
			Width:   texture.Width,
			Height:  texture.Height,
			Format:  formatName(texture.Format),
			Decoded: texture.Raster() != nil,
		})
	}
	for no, region := range file.Regions {
		listing.Regions = append(listing.Regions, regionEntry{
			Name:      tableName(file.RegionMap, no),
			TextureNo: region.TextureNo,
			Left:      region.Left,
			Top:       region.Top,
			Right:     region.Right,
			Bottom:    region.Bottom,
		})
	}
	for _, timeline := range file.Timelines {
		listing.Timelines = append(listing.Timelines, namedBlob{Name: timeline.Name, Bytes: len(timeline.Data)})
	}
	for _, shape := range file.Shapes {
		listing.Shapes = append(listing.Shapes, namedBlob{Name: shape.Name, Bytes: len(shape.Data)})
	}

	if listJSON {
		out, err := json.MarshalIndent(listing, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("textures (%d):\n", len(listing.Textures))
	for _, entry := range listing.Textures {
		decoded := ""
		if !entry.Decoded {
			decoded = " (not decoded)"
		}
		fmt.Printf("  %s: %dx%d %s%s\n", entry.Name, entry.Width, entry.Height, entry.Format, decoded)
	}
	fmt.Printf("regions (%d):\n", len(listing.Regions))
	for no, entry := range listing.Regions {
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("#%d", no)
		}
		fmt.Printf("  %s: %s\n", name, file.Regions[no])
	}
	fmt.Printf("timelines (%d):\n", len(listing.Timelines))
	for _, entry := range listing.Timelines {
		fmt.Printf("  %s: %d bytes\n", entry.Name, entry.Bytes)
	}
	fmt.Printf("shapes (%d):\n", len(listing.Shapes))
	for _, entry := range listing.Shapes {
		fmt.Printf("  %s: %d bytes\n", entry.Name, entry.Bytes)
	}
	return nil
}

func runCoverage(cmd *cobra.Command, args []string) error {
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}

	total := 0
	for _, r := range file.Uncovered() {
		fmt.Printf("container: %s\n", r)
		total += r.End - r.Start
	}
	for _, timeline := range file.Timelines {
		for _, r := range timeline.Uncovered() {
			fmt.Printf("timeline %s: %s\n", timeline.Name, r)
			total += r.End - r.Start
		}
		for _, s := range timeline.UnreadStrings() {
			fmt.Printf("timeline %s: unread string %q at 0x%x\n", timeline.Name, s.Value, s.Offset)
		}
	}

	if total > 0 {
		return fmt.Errorf("%d bytes were never consumed by the parser", total)
	}
	fmt.Println("all bytes accounted for")
	return nil
}
