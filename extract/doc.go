// Package extract turns web pages into structured data via an
// OpenAI-compatible chat endpoint.
//
// The schemas are fixed: callers pick one of the variants (product,
// article, search_result) and the client prompt-engineers the model
// into emitting a single JSON object, strips any markdown fencing from
// the reply, and reports required fields the model omitted. A separate
// vision path reads search results off a results-page screenshot.
//
// HTML is capped before prompting so oversized pages degrade to a
// truncated preview instead of blowing the model context. Token usage
// is estimated up front with tiktoken and logged when it is likely to
// exceed the configured context window.
package extract
