package segment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/teslashibe/posecam/internal/httpc"
)

// resolveModel returns a local path for a model file, downloading it from
// opts.ModelURL into opts.ModelDir when it is not present.
func resolveModel(ctx context.Context, opts ModelOptions, name string, logger *slog.Logger) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(opts.ModelDir, name)
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if opts.ModelURL == "" {
		return "", &LoadError{Model: name, Err: fmt.Errorf("model file not found: %s", path)}
	}

	url := strings.TrimRight(opts.ModelURL, "/") + "/" + filepath.Base(name)
	logger.Info("downloading model", "url", url, "path", path)

	n, err := httpc.Download(ctx, url, path)
	if err != nil {
		return "", &LoadError{Model: name, Err: err}
	}

	logger.Info("model downloaded", "path", path, "bytes", n)
	return path, nil
}
