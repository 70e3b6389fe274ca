package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/ap2"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/txp2"
)

func init() {
	swfCmd := &cobra.Command{
		Use:   "swf <container> [timeline]",
		Short: "Dump timeline structure: tags, frames and nested sprites",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSWF,
	}
	disasmCmd := &cobra.Command{
		Use:   "disasm <container> [timeline]",
		Short: "Print bytecode traces for actions, handlers and initializers",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDisasm,
	}
	rootCmd.AddCommand(swfCmd, disasmCmd)
}

func selectTimelines(file *txp2.File, args []string) ([]*ap2.Timeline, error) {
	if len(args) < 2 {
		return file.Timelines, nil
	}
	timeline, ok := file.TimelineByName(args[1])
	if !ok {
		return nil, fmt.Errorf("no timeline named %q", args[1])
	}
	return []*ap2.Timeline{timeline}, nil
}

func runSWF(cmd *cobra.Command, args []string) error {
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}
	timelines, err := selectTimelines(file, args)
	if err != nil {
		return err
	}

	for _, timeline := range timelines {
		dumpTimeline(os.Stdout, timeline)
	}
	return nil
}

func dumpTimeline(w io.Writer, t *ap2.Timeline) {
	fmt.Fprintf(w, "timeline %q (exported %q)\n", t.Name, t.ExportedName)
	fmt.Fprintf(w, "  container version %#x, data version %#x, flags %#010x\n",
		t.ContainerVersion, t.Version, t.Flags)
	fmt.Fprintf(w, "  fps %g, stage %s\n", t.FPS, t.Stage)
	if t.BackgroundColor != nil {
		fmt.Fprintf(w, "  background %s\n", t.BackgroundColor)
	}
	for _, asset := range t.Exported {
		fmt.Fprintf(w, "  exports tag %d as %q\n", asset.TagID, asset.Name)
	}
	for _, group := range t.ImportGroups {
		fmt.Fprintf(w, "  imports from %q:\n", group.Source)
		for _, asset := range group.Assets {
			fmt.Fprintf(w, "    tag %d as %q\n", asset.TagID, asset.Name)
		}
	}
	for _, init := range t.Initializers {
		instructions := 0
		if init.Bytecode != nil {
			instructions = len(init.Bytecode.Instructions)
		}
		fmt.Fprintf(w, "  initializer for tag %d, frame %d: %d instructions\n",
			init.TagID, init.Frame, instructions)
	}
	dumpDirectory(w, t, 0, "  ")
}

func dumpDirectory(w io.Writer, t *ap2.Timeline, index int, indent string) {
	if index < 0 || index >= len(t.Directories) {
		return
	}
	dir := &t.Directories[index]

	fmt.Fprintf(w, "%sdirectory %d: %d tags, %d frames\n", indent, index, len(dir.Tags), len(dir.Frames))
	for i, frame := range dir.Frames {
		fmt.Fprintf(w, "%s  frame %d: tags %d..%d\n", indent, i, frame.StartTag, frame.StartTag+frame.Count)
	}
	for i := range dir.Tags {
		tag := &dir.Tags[i]
		fmt.Fprintf(w, "%s  tag %d: %s, %d bytes%s\n", indent, i, tag.Type, tag.Size, describeTag(tag))
		if sprite, ok := tag.Payload.(ap2.SpriteDef); ok {
			dumpDirectory(w, t, sprite.Directory, indent+"    ")
		}
	}
	for _, unknown := range dir.Unknowns {
		fmt.Fprintf(w, "%s  unknown ref %d -> %q\n", indent, unknown.Value, unknown.Name)
	}
}

func describeTag(tag *ap2.Tag) string {
	switch payload := tag.Payload.(type) {
	case ap2.ShapeRef:
		return fmt.Sprintf(": shape %d -> %s", payload.ShapeID, payload.Reference)
	case ap2.SpriteDef:
		return fmt.Sprintf(": sprite %d -> directory %d", payload.SpriteID, payload.Directory)
	case ap2.FontDef:
		return fmt.Sprintf(": font %d %q, %d heights", payload.FontID, payload.Name, len(payload.Heights))
	case ap2.DoAction:
		return fmt.Sprintf(": %d instructions", len(payload.Bytecode.Instructions))
	case ap2.RemoveObject:
		return fmt.Sprintf(": object %d at depth %d", payload.ObjectID, payload.Depth)
	case ap2.EditText:
		return fmt.Sprintf(": text %d variable %q", payload.TextID, payload.VariableName)
	case ap2.PlaceObject:
		verb := "place"
		if payload.IsUpdate() {
			verb = "update"
		}
		extra := ""
		if payload.Name != nil {
			extra = fmt.Sprintf(", name %q", *payload.Name)
		}
		if len(payload.Events) > 0 {
			extra += fmt.Sprintf(", %d handlers", len(payload.Events))
		}
		return fmt.Sprintf(": %s object %d at depth %d%s", verb, payload.ObjectID, payload.Depth, extra)
	default:
		return ""
	}
}

func runDisasm(cmd *cobra.Command, args []string) error {
	file, err := openContainer(args[0])
	if err != nil {
		return err
	}
	timelines, err := selectTimelines(file, args)
	if err != nil {
		return err
	}

	for _, timeline := range timelines {
		disasmTimeline(os.Stdout, timeline)
	}
	return nil
}

func disasmTimeline(w io.Writer, t *ap2.Timeline) {
	for _, init := range t.Initializers {
		if init.Bytecode == nil {
			continue
		}
		fmt.Fprintf(w, "timeline %q initializer, tag %d frame %d:\n", t.Name, init.TagID, init.Frame)
		init.Bytecode.WriteTrace(w, "  ")
	}
	for di := range t.Directories {
		dir := &t.Directories[di]
		for ti := range dir.Tags {
			tag := &dir.Tags[ti]
			switch payload := tag.Payload.(type) {
			case ap2.DoAction:
				fmt.Fprintf(w, "timeline %q directory %d tag %d (%s):\n", t.Name, di, ti, tag.Type)
				payload.Bytecode.WriteTrace(w, "  ")
			case ap2.PlaceObject:
				for ei := range payload.Events {
					event := &payload.Events[ei]
					if event.Bytecode == nil {
						continue
					}
					fmt.Fprintf(w, "timeline %q directory %d tag %d (%s), handler %d flags %#010x:\n",
						t.Name, di, ti, tag.Type, ei, event.Flags)
					event.Bytecode.WriteTrace(w, "  ")
				}
			}
		}
	}
}
