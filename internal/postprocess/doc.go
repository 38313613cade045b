// Package postprocess turns finished session transcripts into polished
// artifacts with a local LLM: a grammar-only cleanup pass and a strict
// JSON title/summary pass, both against an OpenAI-compatible endpoint.
// Every failure here is non-fatal to the recording itself.
package postprocess
