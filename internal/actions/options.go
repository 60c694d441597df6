package actions

import "slices"

// Refine models accepted by Refine. The first entry is the default.
var RefineModels = []string{
	"gemini-2.5-flash-image",
	"gemini-3-pro-image-preview",
}

var OutputSizes = []string{"1K", "2K", "4K"}

var AspectRatios = []string{"1:1", "4:3", "3:4", "16:9", "9:16"}

func ValidModel(m string) bool       { return slices.Contains(RefineModels, m) }
func ValidSize(s string) bool        { return s == "" || slices.Contains(OutputSizes, s) }
func ValidAspectRatio(a string) bool { return a == "" || slices.Contains(AspectRatios, a) }

// Cycle returns the entry after cur in opts, wrapping around.
func Cycle(opts []string, cur string) string {
	if len(opts) == 0 {
		return cur
	}
	i := slices.Index(opts, cur)
	return opts[(i+1)%len(opts)]
}
