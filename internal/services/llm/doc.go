// Package llm sends vision prompts to OpenAI-compatible chat completion APIs
// (OpenRouter by default). The recognition package uses it for the "llm"
// detector backend.
//
// Client.Ask posts one user turn made of a text part and an image_url part
// and returns the reply text. HTTP 408, 429 and 5xx answers, network
// timeouts and empty replies are retried with exponential backoff, honouring
// Retry-After. Other failures return immediately as *StatusError or a
// wrapped error.
package llm
