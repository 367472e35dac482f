package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LoraSpec selects a LoRA adapter applied on top of the base weights.
type LoraSpec struct {
	// Path to the adapter file, relative to the configured model root.
	// example: loras/chat-tune.gguf
	Path string `json:"path" yaml:"path" toml:"path" example:"loras/chat-tune.gguf"`
	// Blend factor of the adapter; 1.0 applies it fully.
	// example: 1.0
	Alpha float32 `json:"alpha,omitempty" yaml:"alpha,omitempty" toml:"alpha,omitempty" example:"1.0"`
}

// StateSpec names an initial state file to register at load time.
type StateSpec struct {
	// Path to the state file, relative to the configured model root.
	// example: states/assistant.state
	Path string `json:"path" yaml:"path" toml:"path" example:"states/assistant.state"`
	// Human-readable name the state is registered under; defaults to the file name.
	// example: assistant
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty" example:"assistant"`
	// If true, new sessions start from this state unless told otherwise.
	Default bool `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
}

// ListenConfig carries the HTTP listener settings. It travels inside the
// reload configuration so one config file describes a whole deployment, but
// it is read only at startup; the worker ignores it.
type ListenConfig struct {
	// example: 0.0.0.0
	IP string `json:"ip,omitempty" yaml:"ip,omitempty" toml:"ip,omitempty" example:"0.0.0.0"`
	// example: 65530
	Port int `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty" example:"65530"`
	// example: local
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty" toml:"domain,omitempty" example:"local"`
	TLS      bool   `json:"tls,omitempty" yaml:"tls,omitempty" toml:"tls,omitempty"`
	ACME     bool   `json:"acme,omitempty" yaml:"acme,omitempty" toml:"acme,omitempty"`
	CertPath string `json:"cert_path,omitempty" yaml:"cert_path,omitempty" toml:"cert_path,omitempty"`
	KeyPath  string `json:"key_path,omitempty" yaml:"key_path,omitempty" toml:"key_path,omitempty"`
}

// ReloadRequest describes everything needed to (re)load the model: base
// weights, adapters, initial states, and runtime knobs. It is the payload of
// POST /api/models/load and the [model] section of the config file.
type ReloadRequest struct {
	// Path to the model weights, relative to the configured model root.
	// example: models/rwkv-7b-q8.gguf
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path" example:"models/rwkv-7b-q8.gguf"`
	// LoRA adapters merged on top of the base weights, in order.
	Lora []LoraSpec `json:"lora,omitempty" yaml:"lora,omitempty" toml:"lora,omitempty"`
	// Initial states registered when the model comes up.
	State []StateSpec `json:"state,omitempty" yaml:"state,omitempty" toml:"state,omitempty"`
	// Number of layers to quantize on load (0 = keep file precision).
	// example: 0
	Quant int `json:"quant,omitempty" yaml:"quant,omitempty" toml:"quant,omitempty" example:"0"`
	// Compute precision: fp16 or fp32.
	// example: fp16
	Precision string `json:"precision,omitempty" yaml:"precision,omitempty" toml:"precision,omitempty" example:"fp16"`
	// Maximum tokens fed to the model per forward chunk.
	// example: 128
	TokenChunkSize int `json:"token_chunk_size,omitempty" yaml:"token_chunk_size,omitempty" toml:"token_chunk_size,omitempty" example:"128"`
	// Maximum concurrently batched sessions the runtime should plan for.
	// example: 8
	MaxBatch int `json:"max_batch,omitempty" yaml:"max_batch,omitempty" toml:"max_batch,omitempty" example:"8"`
	// Optional tokenizer override; empty uses the tokenizer embedded in the model.
	TokenizerPath string `json:"tokenizer_path,omitempty" yaml:"tokenizer_path,omitempty" toml:"tokenizer_path,omitempty"`
	// Listener settings, read only at startup.
	Listen *ListenConfig `json:"listen,omitempty" yaml:"listen,omitempty" toml:"listen,omitempty"`
}

// SaveRequest asks the worker to persist the loaded model plus merged
// adapters as a single prefab file.
type SaveRequest struct {
	// Destination path, relative to the configured model root.
	// example: prefabs/merged-7b.st
	Path string `json:"path" example:"prefabs/merged-7b.st"`
}

// StateInfo is the public view of one registered initial state.
type StateInfo struct {
	// Opaque id assigned at registration; not stable across reloads.
	// example: 0b8f5c1e-0b2a-4b7e-9a3e-2f6f1c9d4e21
	ID string `json:"id" example:"0b8f5c1e-0b2a-4b7e-9a3e-2f6f1c9d4e21"`
	// example: assistant
	Name string `json:"name" example:"assistant"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// TokenCounter carries token accounting, finalized in a session's terminal
// stop event. Field names follow the OpenAI usage object.
type TokenCounter struct {
	// example: 11
	PromptTokens int `json:"prompt_tokens" example:"11"`
	// example: 128
	CompletionTokens int `json:"completion_tokens" example:"128"`
	// example: 139
	TotalTokens int `json:"total_tokens" example:"139"`
}

// TextInput accepts either a JSON string or an array of strings, as the
// OpenAI embedding and completion endpoints allow both.
type TextInput []string

func (t *TextInput) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*t = TextInput{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*t = TextInput(many)
		return nil
	}
	return fmt.Errorf("input must be a string or an array of strings")
}

func (t TextInput) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(t))
}

// Join concatenates all parts into one prompt.
func (t TextInput) Join() string {
	return strings.Join([]string(t), "")
}

// EmbeddingRequest is the body of POST /api/oai/embeddings.
type EmbeddingRequest struct {
	Input TextInput `json:"input"`
	// Layer whose hidden state is extracted as the embedding vector.
	// example: 0
	EmbedLayer int `json:"embed_layer,omitempty" example:"0"`
}

// EmbeddingData is one embedding vector in an EmbeddingResponse.
type EmbeddingData struct {
	Object    string    `json:"object" example:"embedding"`
	Index     int       `json:"index" example:"0"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingResponse mirrors the OpenAI embedding list object.
type EmbeddingResponse struct {
	Object string          `json:"object" example:"list"`
	Model  string          `json:"model"`
	Data   []EmbeddingData `json:"data"`
	Usage  TokenCounter    `json:"usage"`
}

// CompletionRequest is the body of POST /api/oai/completions.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Prompt      TextInput `json:"prompt"`
	MaxTokens   int       `json:"max_tokens,omitempty" example:"256"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature float32   `json:"temperature,omitempty" example:"1.0"`
	TopP        float32   `json:"top_p,omitempty" example:"0.5"`
	TopK        int       `json:"top_k,omitempty" example:"40"`
	Seed        int       `json:"seed,omitempty"`
}

// ChatMessage is one turn of a chat completion conversation.
type ChatMessage struct {
	// example: user
	Role    string `json:"role,omitempty" example:"user"`
	Content string `json:"content,omitempty"`
}

// ChatRequest is the body of POST /api/oai/chat/completions.
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty" example:"256"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature float32       `json:"temperature,omitempty" example:"1.0"`
	TopP        float32       `json:"top_p,omitempty" example:"0.5"`
	TopK        int           `json:"top_k,omitempty" example:"40"`
	Seed        int           `json:"seed,omitempty"`
}

// CompletionChoice is one generated alternative in a completion response.
type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason,omitempty" example:"stop"`
}

// CompletionResponse is the (chunk or final) payload of the completion endpoints.
type CompletionResponse struct {
	Object  string             `json:"object" example:"text_completion"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *TokenCounter      `json:"usage,omitempty"`
}

// ChatChoice is one generated alternative in a chat completion response. For
// streamed chunks Delta is set instead of Message.
type ChatChoice struct {
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *ChatMessage `json:"delta,omitempty"`
	Index        int          `json:"index"`
	FinishReason string       `json:"finish_reason,omitempty" example:"stop"`
}

// ChatResponse is the payload of the chat completion endpoints.
type ChatResponse struct {
	Object  string        `json:"object" example:"chat.completion"`
	Model   string        `json:"model"`
	Choices []ChatChoice  `json:"choices"`
	Usage   *TokenCounter `json:"usage,omitempty"`
}

// ModelEntry is one item of the OpenAI model list.
type ModelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object" example:"model"`
	OwnedBy string `json:"owned_by" example:"inferd"`
}

// ModelListResponse wraps GET /api/oai/models.
type ModelListResponse struct {
	Object string       `json:"object" example:"list"`
	Data   []ModelEntry `json:"data"`
}

// FileInfo is one entry of a sandboxed directory listing.
type FileInfo struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// DirRequest is the body of POST /api/files/dir.
type DirRequest struct {
	// Directory to list, relative to the configured model root.
	// example: states
	Path string `json:"path" example:"states"`
}
