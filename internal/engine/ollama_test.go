package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/models/llama-3.2-3b.gguf", "llama-3.2-3b"},
		{"llama3", "llama3"},
		{"/deep/nested/dir/phi-4.bin", "phi-4"},
		{"tiny.gguf", "tiny"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, modelName(tt.path), "path %q", tt.path)
	}
}

func TestContextLength(t *testing.T) {
	tests := []struct {
		name string
		info map[string]any
		want int
	}{
		{"llama key", map[string]any{"llama.context_length": float64(8192)}, 8192},
		{"qwen key", map[string]any{"qwen2.context_length": float64(32768)}, 32768},
		{"int value", map[string]any{"llama.context_length": 4096}, 4096},
		{"missing", map[string]any{"llama.vocab_size": float64(32000)}, 0},
		{"nil map", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contextLength(tt.info))
		})
	}
}
