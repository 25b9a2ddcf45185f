package client

// buildChain returns the ordered model list for one orchestrated call:
// the primary first, then the fallbacks with the primary and duplicates
// removed, preserving the configured relative order.
func buildChain(primary string, fallbacks []string) []string {
	chain := []string{primary}
	seen := map[string]bool{primary: true}

	for _, model := range fallbacks {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		chain = append(chain, model)
	}

	return chain
}
