package http

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirectoryHandler serves files under root. Directories get a plain-text
// listing. Request paths are resolved against root and anything escaping it
// (../ traversal) is answered with a 404 rather than revealing whether the
// target exists.
func DirectoryHandler(root string) (Handler, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return func(ctx *RequestCtx) {
		target := filepath.Join(absRoot, filepath.FromSlash(ctx.Request.Path))
		if target != absRoot && !strings.HasPrefix(target, absRoot+string(filepath.Separator)) {
			ctx.Response.WithStatus(StatusNotFound)
			return
		}

		info, err := os.Stat(target)
		if err != nil {
			ctx.Response.WithStatus(StatusNotFound)
			return
		}

		if info.IsDir() {
			entries, err := os.ReadDir(target)
			if err != nil {
				ctx.Response.WithStatus(StatusNotFound)
				return
			}
			names := make([]string, 0, len(entries)+1)
			for _, entry := range entries {
				names = append(names, entry.Name())
			}
			sort.Strings(names)
			names = append(names, "")
			ctx.Response.WithText(strings.Join(names, "\n"))
			return
		}

		file, err := os.Open(target)
		if err != nil {
			ctx.Response.WithStatus(StatusNotFound)
			return
		}
		ctx.Response.Headers.Set("Content-Type", GetMimeType(info.Name()))
		ctx.Response.WithBodyStream(file, info.Size())
	}, nil
}
