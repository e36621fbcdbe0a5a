// Package openaicompat provides a shared base implementation for every
// OpenAI-compatible chat endpoint webglue talks to.
//
// A local llama.cpp server, an Ollama daemon, and the hosted vision proxy
// all speak the same API format (OpenAI Chat Completions). Instead of
// duplicating the HTTP handling, message conversion, and error mapping for
// each of them, call sites construct an openaicompat.Provider and only
// configure what differs:
//
//   - Provider name and default model
//   - Base URL and API key (local endpoints leave the key empty)
//   - Custom headers (if any)
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "ollama",
//	    BaseURL:      "http://localhost:11434",
//	    DefaultModel: "qwen2:7b",
//	    Timeout:      2 * time.Minute,
//	}, logger)
package openaicompat
