package network

import (
	"fmt"
	"sort"
	"strings"
)

// Report renders the final pass/fail report: one line per observed
// (src,dst) pair, sorted lexicographically by src then dst, each tagged
// "Incorrect Route" when it failed to match the whitelist, followed by a
// single SUCCESS/FAILURE summary line. SUCCESS requires both a non-empty
// route map and every entry correct; an empty route map is FAILURE, not
// a vacuous SUCCESS.
func (n *Network) Report() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	keys := make([]routeKey, 0, len(n.routes))
	for k := range n.routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Src != keys[j].Src {
			return keys[i].Src < keys[j].Src
		}
		return keys[i].Dst < keys[j].Dst
	})

	var b strings.Builder
	b.WriteString("\n")

	allCorrect := true
	correctCount := 0
	for _, k := range keys {
		rec := n.routes[k]
		b.WriteString(fmt.Sprintf("%s -> %s: %s", k.Src, k.Dst, formatRoute(rec.Route)))
		if !rec.Correct {
			allCorrect = false
			b.WriteString(" Incorrect Route")
		} else {
			correctCount++
		}
		b.WriteString("\n")
	}

	n.metrics.SetReportTotals(correctCount, len(keys))

	if allCorrect && len(keys) > 0 {
		b.WriteString("SUCCESS: All Routes correct!\n")
	} else {
		b.WriteString("FAILURE: Not all routes are correct\n")
	}

	return b.String()
}

func formatRoute(route []string) string {
	if len(route) == 0 {
		return "[]"
	}
	return "[" + strings.Join(route, ", ") + "]"
}
