// Package gemini provides an ai.AIProvider backed by Google Generative AI
// embedding models such as text-embedding-004.
package gemini
