package io

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidModelID is returned for ids that cannot name a model file.
var ErrInvalidModelID = errors.New("invalid model id")

// Fetcher returns the raw document of a city model.
type Fetcher interface {
	FetchCityModel(ctx context.Context, modelID string) ([]byte, error)
}

// DirFetcher reads <Dir>/<id>.json.
type DirFetcher struct {
	Dir string
}

func (f DirFetcher) FetchCityModel(ctx context.Context, modelID string) ([]byte, error) {
	path, err := modelPath(f.Dir, modelID, ".json")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %q: %w", modelID, err)
	}
	return data, nil
}

// modelPath joins dir and id+ext, refusing ids that would leave dir.
func modelPath(dir, modelID, ext string) (string, error) {
	if modelID == "" || modelID != filepath.Base(modelID) || strings.HasPrefix(modelID, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidModelID, modelID)
	}
	return filepath.Join(dir, modelID+ext), nil
}
