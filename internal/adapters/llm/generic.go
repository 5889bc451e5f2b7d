package llm

// NewGenericProvider returns the "generic" (in-house gateway style) family
// described in spec.md §4.7: wire-identical to the openai family, modeled
// as a distinct type only so its auth header, base URL, and StreamClient
// deadlines never leak into the openai family's tuning.
func NewGenericProvider(cfg PlainConfig, client *StreamClient) *PlainProvider {
	return NewPlainProvider(cfg, client)
}
