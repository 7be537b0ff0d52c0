package engine

import (
	"sort"

	"complyflow/internal/catalog/models"
)

// orderByDependency sorts rules so that every dependency precedes its
// dependents within one run. Edges come from both dependsOnRules and the RED
// trigger dependency set. Rules on a dependency cycle cannot be ordered and
// are returned separately; the evaluator records them as rule errors.
//
// Ties are broken lexically by rule ID so evaluation order is deterministic.
func orderByDependency(rules []*models.ComplianceRule) (ordered, cyclic []*models.ComplianceRule) {
	byID := make(map[string]*models.ComplianceRule, len(rules))
	for _, r := range rules {
		byID[r.RuleID] = r
	}

	indegree := make(map[string]int, len(rules))
	dependents := make(map[string][]string, len(rules))
	for _, r := range rules {
		indegree[r.RuleID] += 0
		for _, dep := range dependencyEdges(r) {
			if _, known := byID[dep]; !known {
				// Dependency on a rule outside the active catalog; nothing to
				// order against. The evaluator treats it as unmet.
				continue
			}
			indegree[r.RuleID]++
			dependents[dep] = append(dependents[dep], r.RuleID)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])

		next := dependents[id]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(ordered) < len(rules) {
		placed := make(map[string]bool, len(ordered))
		for _, r := range ordered {
			placed[r.RuleID] = true
		}
		for _, r := range rules {
			if !placed[r.RuleID] {
				cyclic = append(cyclic, r)
			}
		}
		sort.Slice(cyclic, func(i, j int) bool { return cyclic[i].RuleID < cyclic[j].RuleID })
	}
	return ordered, cyclic
}

// dependencyEdges merges the two dependency sets of a rule, deduplicated.
func dependencyEdges(r *models.ComplianceRule) []string {
	seen := make(map[string]bool, len(r.DependsOnRules)+len(r.RedTriggers.Dependencies))
	var edges []string
	for _, set := range [][]string{r.DependsOnRules, r.RedTriggers.Dependencies} {
		for _, dep := range set {
			if dep != "" && dep != r.RuleID && !seen[dep] {
				seen[dep] = true
				edges = append(edges, dep)
			}
		}
	}
	return edges
}

func insertSorted(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
