package pkg

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/txp2"
	"github.com/wz18207/bemaniutils-gfdm/pkg/logging"
)

// VerifyContainerWithLogger checks the container at path end to end: the
// parse itself, how much of the file the parse accounted for, and whether a
// rewrite reproduces the same structure. Every finding is logged; the
// returned error aggregates the fatal ones.
func VerifyContainerWithLogger(path string, options ContainerOptions, logger hclog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading container: %w", err)
	}

	options.Logger = logger
	problems := []string{}

	file, err := OpenContainerBytes(data, options)
	if err != nil {
		logger.Error("Structure verification failed", "error", err)
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	logger.Info("✓ Structure valid",
		"textures", len(file.Textures), "regions", len(file.Regions),
		"timelines", len(file.Timelines), "shapes", len(file.Shapes))

	if uncovered := file.Uncovered(); len(uncovered) > 0 {
		total := 0
		for _, r := range uncovered {
			total += r.End - r.Start
		}
		// Alignment gaps between sections are normal, so this is
		// informational rather than fatal.
		logger.Info("Unparsed regions present", "ranges", len(uncovered), "bytes", total)
	} else {
		logger.Info("✓ Every byte accounted for")
	}

	for _, timeline := range file.Timelines {
		if unread := timeline.UnreadStrings(); len(unread) > 0 {
			logger.Warn("Timeline has unreferenced pool strings", "timeline", timeline.Name, "count", len(unread))
		}
	}

	if file.ReadOnly() {
		logger.Warn("Container is read-only, skipping rewrite check")
	} else {
		rewritten, err := file.Serialize()
		if err != nil {
			problems = append(problems, fmt.Sprintf("serialize failed: %v", err))
			logger.Error("Rewrite failed", "error", err)
		} else if bytes.Equal(rewritten, data) {
			logger.Info("✓ Rewrite is byte-identical")
		} else {
			reparsed, err := OpenContainerBytes(rewritten, options)
			if err != nil {
				problems = append(problems, fmt.Sprintf("rewritten container does not parse: %v", err))
				logger.Error("Rewritten container does not parse", "error", err)
			} else if diffs := structureDiff(file, reparsed); len(diffs) > 0 {
				for _, diff := range diffs {
					logger.Error("Round trip mismatch", "details", diff)
				}
				problems = append(problems, fmt.Sprintf("%v: %d differences", ErrRoundTripMismatch, len(diffs)))
			} else {
				logger.Info("✓ Rewrite re-encoded with equivalent structure",
					"source_bytes", len(data), "rewritten_bytes", len(rewritten))
			}
		}
	}

	if len(problems) > 0 {
		logger.Error("✗ Container verification failed", "error_count", len(problems))
		return fmt.Errorf("%w: %d problems", ErrVerificationFailed, len(problems))
	}
	logger.Info("✓ Container verification passed")
	return nil
}

// VerifyContainer verifies a container using default logger settings.
func VerifyContainer(path string, options ContainerOptions) error {
	logger := logging.NewLogger("afp-verify", logging.GetLogLevel(), nil)
	return VerifyContainerWithLogger(path, options, logger)
}

// structureDiff compares the observable structure of two parsed containers
// and describes every difference it finds.
func structureDiff(a, b *txp2.File) []string {
	var diffs []string

	if a.Features != b.Features {
		diffs = append(diffs, fmt.Sprintf("feature mask %#x became %#x", a.Features, b.Features))
	}

	if len(a.Textures) != len(b.Textures) {
		diffs = append(diffs, fmt.Sprintf("%d textures became %d", len(a.Textures), len(b.Textures)))
	} else {
		for i, ta := range a.Textures {
			tb := b.Textures[i]
			if ta.Name != tb.Name || ta.Width != tb.Width || ta.Height != tb.Height || ta.Format != tb.Format {
				diffs = append(diffs, fmt.Sprintf("texture %d: %q %dx%d fmt %#x became %q %dx%d fmt %#x",
					i, ta.Name, ta.Width, ta.Height, ta.Format, tb.Name, tb.Width, tb.Height, tb.Format))
			} else if !bytes.Equal(ta.Raw, tb.Raw) {
				diffs = append(diffs, fmt.Sprintf("texture %q: pixel payload changed", ta.Name))
			}
		}
	}

	if len(a.Regions) != len(b.Regions) {
		diffs = append(diffs, fmt.Sprintf("%d regions became %d", len(a.Regions), len(b.Regions)))
	} else {
		for i, ra := range a.Regions {
			if ra != b.Regions[i] {
				diffs = append(diffs, fmt.Sprintf("region %d: %s became %s", i, ra, b.Regions[i]))
			}
		}
	}

	diffs = append(diffs, nameTableDiff("texture map", a.TextureMap, b.TextureMap)...)
	diffs = append(diffs, nameTableDiff("region map", a.RegionMap, b.RegionMap)...)
	diffs = append(diffs, nameTableDiff("timeline map", a.TimelineMap, b.TimelineMap)...)
	diffs = append(diffs, nameTableDiff("shape map", a.ShapeMap, b.ShapeMap)...)

	if len(a.Timelines) != len(b.Timelines) {
		diffs = append(diffs, fmt.Sprintf("%d timelines became %d", len(a.Timelines), len(b.Timelines)))
	} else {
		for i, ta := range a.Timelines {
			tb := b.Timelines[i]
			if ta.Name != tb.Name {
				diffs = append(diffs, fmt.Sprintf("timeline %d: %q became %q", i, ta.Name, tb.Name))
			} else if !bytes.Equal(ta.Data, tb.Data) {
				diffs = append(diffs, fmt.Sprintf("timeline %q: payload changed", ta.Name))
			}
		}
	}

	if len(a.Shapes) != len(b.Shapes) {
		diffs = append(diffs, fmt.Sprintf("%d shapes became %d", len(a.Shapes), len(b.Shapes)))
	} else {
		for i, sa := range a.Shapes {
			sb := b.Shapes[i]
			if sa.Name != sb.Name {
				diffs = append(diffs, fmt.Sprintf("shape %d: %q became %q", i, sa.Name, sb.Name))
			} else if !bytes.Equal(sa.Data, sb.Data) {
				diffs = append(diffs, fmt.Sprintf("shape %q: payload changed", sa.Name))
			}
		}
	}

	if !bytes.Equal(a.FontBlob, b.FontBlob) {
		diffs = append(diffs, "font package changed")
	}

	return diffs
}

func nameTableDiff(which string, a, b *txp2.NameTable) []string {
	if a.Len() != b.Len() {
		return []string{fmt.Sprintf("%s: %d entries became %d", which, a.Len(), b.Len())}
	}
	if a == nil || b == nil {
		return nil
	}
	var diffs []string
	for i, name := range a.Entries {
		if b.Entries[i] != name {
			diffs = append(diffs, fmt.Sprintf("%s entry %d: %q became %q", which, i, name, b.Entries[i]))
		}
	}
	return diffs
}
