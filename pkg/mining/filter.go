package mining

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
)

// SourceFilter accepts paths with one of the given extensions. When
// skipVendored is set, third-party and vendored trees are excluded.
func SourceFilter(extensions []string, skipVendored bool) gitlib.PathFilter {
	exts := make(map[string]struct{}, len(extensions))

	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		exts[ext] = struct{}{}
	}

	return func(p string) bool {
		if len(exts) > 0 {
			if _, ok := exts[strings.ToLower(path.Ext(p))]; !ok {
				return false
			}
		}

		return !skipVendored || !enry.IsVendor(p)
	}
}
