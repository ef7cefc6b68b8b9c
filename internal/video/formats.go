package video

import (
	"fmt"
	"sort"
	"strconv"
)

type formatKey struct {
	height int
	fps    float64
}

// SelectFormats は映像を含むフォーマットだけを残し、(高さ, fps) で重複を除いて
// 高さ・fps の降順に並べます。同じキーでは先に現れたものを採用します。
func SelectFormats(raw []RawFormat) []Format {
	seen := make(map[formatKey]struct{}, len(raw))
	formats := make([]Format, 0, len(raw))
	for _, f := range raw {
		height := int(f.Height)
		if f.VCodec == "none" || height <= 0 {
			continue
		}
		key := formatKey{height: height, fps: f.FPS}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		size := f.Filesize
		if size <= 0 {
			size = f.FilesizeApprox
		}
		formats = append(formats, Format{
			FormatID:       f.FormatID,
			Resolution:     resolutionLabel(height, f.FPS),
			FilesizeApprox: int64(size),
			VCodec:         f.VCodec,
			FPS:            f.FPS,
			height:         height,
		})
	}

	sort.SliceStable(formats, func(i, j int) bool {
		if formats[i].height != formats[j].height {
			return formats[i].height > formats[j].height
		}
		return formats[i].FPS > formats[j].FPS
	})
	return formats
}

func resolutionLabel(height int, fps float64) string {
	label := fmt.Sprintf("%dp", height)
	if fps > 30 {
		label += " " + strconv.FormatFloat(fps, 'f', -1, 64) + "fps"
	}
	return label
}
