package checkpoint

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Unset is the sentinel placeholder §4.10 requires serializing as the
// literal string "Unset" rather than null or zero-value, so that "not
// configured" is distinguishable from "configured to the zero value" in
// the fingerprint.
var Unset = &struct{}{}

// ProviderSpec is one embedding provider's fingerprint-relevant identity
// (§4.7.3: "Provider (name, model, dimension) triples for each embedding
// kind").
type ProviderSpec struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// VectorStoreSpec is the vector store's fingerprint-relevant identity.
type VectorStoreSpec struct {
	Kind           string `json:"kind"`
	CollectionName string `json:"collection_name"`
}

// ChunkerSpec is the chunker's fingerprint-relevant identity.
type ChunkerSpec struct {
	Kind                string  `json:"kind"`
	Version             string  `json:"version"`
	ImportanceThreshold float64 `json:"importance_threshold"`
}

// Settings is the full fingerprint input (§4.7.3). IndexerSettings holds
// the effective, already-resolved configuration as a flat JSON-compatible
// map — computed/derived fields and live object references (open file
// handles, provider clients) must never be placed in it; only the
// process's own config-loading layer assembles this map, so that
// exclusion happens once, at the source.
type Settings struct {
	IndexerSettings map[string]any          `json:"indexer_settings"`
	DenseProvider    *ProviderSpec           `json:"dense_provider"`
	SparseProvider   *ProviderSpec           `json:"sparse_provider"`
	VectorStore      VectorStoreSpec         `json:"vector_store"`
	Chunker          ChunkerSpec             `json:"chunker"`
	ProjectRoot      string                  `json:"project_root"`
}

// ComputeSettingsHash implements §4.10's compute_settings_hash: canonical
// JSON serialization (nil provider specs render as the literal "Unset";
// nested maps get alphabetically sorted keys, which encoding/json already
// guarantees for map[string]any) hashed with Blake2b-256.
func ComputeSettingsHash(s Settings) (string, error) {
	canonical, err := canonicalize(s)
	if err != nil {
		return "", fmt.Errorf("checkpoint: canonicalize settings: %w", err)
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("checkpoint: marshal canonical settings: %w", err)
	}

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize converts s into a plain map[string]any tree (so
// encoding/json's deterministic alphabetical map-key ordering applies
// uniformly), substituting "Unset" for any nil *ProviderSpec.
func canonicalize(s Settings) (map[string]any, error) {
	out := map[string]any{
		"indexer_settings": flattenAny(s.IndexerSettings),
		"dense_provider":    providerOrUnset(s.DenseProvider),
		"sparse_provider":   providerOrUnset(s.SparseProvider),
		"vector_store": map[string]any{
			"kind":            s.VectorStore.Kind,
			"collection_name": s.VectorStore.CollectionName,
		},
		"chunker": map[string]any{
			"kind":                 s.Chunker.Kind,
			"version":              s.Chunker.Version,
			"importance_threshold": s.Chunker.ImportanceThreshold,
		},
		"project_root": s.ProjectRoot,
	}
	return out, nil
}

func providerOrUnset(p *ProviderSpec) any {
	if p == nil {
		return "Unset"
	}
	return map[string]any{"name": p.Name, "model": p.Model, "dimension": p.Dimension}
}

// flattenAny recursively normalizes a map[string]any tree so every nested
// map is also a plain map[string]any (not, e.g., map[string]string),
// giving encoding/json one consistent representation to sort and encode.
func flattenAny(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys) // order here is cosmetic; encoding/json re-sorts on marshal
	for _, k := range keys {
		out[k] = flattenValue(m[k])
	}
	return out
}

func flattenValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return flattenAny(val)
	case nil:
		return "Unset"
	case *struct{}:
		if val == Unset {
			return "Unset"
		}
		return val
	default:
		return val
	}
}
