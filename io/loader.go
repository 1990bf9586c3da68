package io

import (
	"context"
	"errors"

	"city-viewer/engine"
)

// FormatLoader picks the glTF loader when a glTF file exists for the model
// and falls back to CityJSON otherwise.
type FormatLoader struct {
	CityJSON *CityJSONLoader
	GLTF     *GLTFLoader
}

func (l FormatLoader) LoadCityModel(ctx context.Context, sink engine.NodeSink, modelID string) error {
	if l.GLTF != nil && l.GLTF.Handles(modelID) {
		return l.GLTF.LoadCityModel(ctx, sink, modelID)
	}
	if l.CityJSON == nil {
		return errors.New("no loader for model " + modelID)
	}
	return l.CityJSON.LoadCityModel(ctx, sink, modelID)
}
