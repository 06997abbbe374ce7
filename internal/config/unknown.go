package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

// maxLevenshteinDistance bounds "did you mean?" suggestions.
const maxLevenshteinDistance = 3

// knownKeys lists every valid key, dotted by section.
var knownKeys = []string{
	"auth_version",
	"endpoints.api_host",
	"endpoints.auth_host",
	"endpoints.storage_host_suffix",
	"logging.log_level",
	"network.connect_timeout",
	"network.data_timeout",
	"network.user_agent",
	"numeric_domain",
	"password",
	"ssl",
	"user",
}

// checkUnknownKeys reports every undecoded key, suggesting the closest known
// key when one is near enough.
func checkUnknownKeys(md *toml.MetaData) error {
	var result *multierror.Error

	for _, key := range md.Undecoded() {
		name := key.String()

		// A bare table header like [network] is decoded through its fields;
		// only its unknown leaves matter.
		if slices.ContainsFunc(knownKeys, func(k string) bool { return strings.HasPrefix(k, name+".") }) {
			continue
		}

		if suggestion := closestMatch(name, knownKeys); suggestion != "" {
			result = multierror.Append(result,
				fmt.Errorf("unknown config key %q, did you mean %q?", name, suggestion))
		} else {
			result = multierror.Append(result, fmt.Errorf("unknown config key %q", name))
		}
	}

	return result.ErrorOrNil()
}

// closestMatch finds the closest known key by Levenshtein distance, or ""
// if none is within maxLevenshteinDistance. Ties go to the earlier key.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings with a
// two-row table.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 0; i < len(a); i++ {
		curr[0] = i + 1

		for j := 0; j < len(b); j++ {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
