package engine

import (
	"fmt"

	ggufparser "github.com/gpustack/gguf-parser-go"
)

// ProbeInfo reads model metadata from a GGUF file without loading any
// tensors. Backends use it to fill ModelInfo; the worker also relies on it to
// report metadata for prefabs saved by this process.
func ProbeInfo(path string) (ModelInfo, error) {
	gf, err := ggufparser.ParseGGUFFile(path)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("parse gguf %s: %w", path, err)
	}
	meta := gf.Metadata()
	arch := gf.Architecture()

	name := meta.Name
	if name == "" {
		name = meta.Architecture
	}
	return ModelInfo{
		Name:         name,
		Architecture: meta.Architecture,
		NumLayer:     int(arch.BlockCount),
		NumEmbed:     int(arch.EmbeddingLength),
		NumVocab:     int(arch.VocabularyLength),
		ContextLen:   int(arch.MaximumContextLength),
		SizeBytes:    int64(meta.Size),
		Quantization: meta.FileTypeDescriptor,
	}, nil
}
