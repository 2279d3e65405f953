package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go-time-archive/internal/model"
)

const maxNameAttempts = 10000

// splitName separates the last extension from name. Folders and dotfiles
// without a further dot have no extension.
func splitName(name string, isFolder bool) (string, string) {
	if isFolder {
		return name, ""
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		return name, ""
	}
	return base, ext
}

// uniqueName returns name, or "base (N).ext" with the smallest N not yet
// present in folder.
func uniqueName(ctx context.Context, tree FileTree, folder model.Node, name string, isFolder bool) (string, error) {
	taken, err := tree.Exists(ctx, folder, name)
	if err != nil {
		return "", err
	}
	if !taken {
		return name, nil
	}

	base, ext := splitName(name, isFolder)
	for counter := 1; counter <= maxNameAttempts; counter++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, counter, ext)
		taken, err := tree.Exists(ctx, folder, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free name for %s in %s", model.ErrPathConflict, name, folder.Path)
}
