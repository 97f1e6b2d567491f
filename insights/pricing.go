package insights

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var defaultPrices []byte

type ModelPrice struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// PriceTable maps model ids to prices. Lookups match the longest model id
// that prefixes the requested one, so dated snapshots such as
// gpt-4o-2024-08-06 resolve to gpt-4o.
type PriceTable struct {
	Version string                `yaml:"version"`
	Models  map[string]ModelPrice `yaml:"models"`
	Images  map[string]float64    `yaml:"images"`
	Speech  map[string]float64    `yaml:"speech"`
}

const tokensPerUnit = 1_000_000

func DefaultPriceTable() *PriceTable {
	t, err := ParsePriceTable(defaultPrices)
	if err != nil {
		panic(fmt.Sprintf("embedded price table: %v", err))
	}
	return t
}

func ParsePriceTable(data []byte) (*PriceTable, error) {
	var t PriceTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse price table: %w", err)
	}
	if t.Version == "" {
		return nil, fmt.Errorf("price table has no version")
	}
	return &t, nil
}

func LoadPriceTable(path string) (*PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price table: %w", err)
	}
	return ParsePriceTable(data)
}

func (t *PriceTable) Lookup(model string) (ModelPrice, bool) {
	key, ok := longestPrefix(model, keys(t.Models))
	if !ok {
		return ModelPrice{}, false
	}
	return t.Models[key], true
}

// EstimateCost is deterministic for a given table and usage. Unknown models
// cost zero and report false.
func (t *PriceTable) EstimateCost(model string, promptTokens, completionTokens int) (float64, bool) {
	p, ok := t.Lookup(model)
	if !ok {
		return 0, false
	}
	cost := (float64(promptTokens)*p.Input + float64(completionTokens)*p.Output) / tokensPerUnit
	return roundCost(cost), true
}

func (t *PriceTable) ImageCost(model, quality string, n int) (float64, bool) {
	key := model
	if quality == "hd" {
		key += "-hd"
	}
	price, ok := t.Images[key]
	if !ok {
		return 0, false
	}
	return roundCost(price * float64(n)), true
}

func (t *PriceTable) SpeechCost(model string, characters int) (float64, bool) {
	price, ok := t.Speech[model]
	if !ok {
		return 0, false
	}
	return roundCost(price * float64(characters) / tokensPerUnit), true
}

func roundCost(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// longestPrefix finds the longest candidate that is s itself or a
// dash-separated prefix of it, so gpt-4o-2024-08-06 resolves to gpt-4o while
// gpt-4.1-mini does not resolve to gpt-4.
func longestPrefix(s string, candidates []string) (string, bool) {
	best := ""
	for _, c := range candidates {
		if len(c) <= len(best) || !strings.HasPrefix(s, c) {
			continue
		}
		if len(s) == len(c) || s[len(c)] == '-' {
			best = c
		}
	}
	return best, best != ""
}
