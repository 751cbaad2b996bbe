package registry

import "strings"

// RulePrefix is the rule id up to the first "_" or ".". An id without a separator is
// its own prefix.
func RulePrefix(ruleID string) string {
	id := strings.TrimSpace(ruleID)
	if i := strings.IndexAny(id, "_."); i >= 0 {
		return id[:i]
	}
	return id
}

// CategoryForRule maps a rule id to one of the model's categories by its prefix.
// An exact id match wins over a case-insensitive one. ok is false when the prefix
// names no known category; such deductions are kept but score nothing.
func (m *ScoringModel) CategoryForRule(ruleID string) (string, bool) {
	prefix := RulePrefix(ruleID)
	if prefix == "" {
		return "", false
	}
	if _, ok := m.categories[prefix]; ok {
		return prefix, true
	}
	for _, id := range m.CategoryOrder {
		if strings.EqualFold(id, prefix) {
			return id, true
		}
	}
	return "", false
}

// ResolveCategory prefers an explicit, known category id and falls back to the rule
// prefix.
func (m *ScoringModel) ResolveCategory(categoryID, ruleID string) (string, bool) {
	if id := strings.TrimSpace(categoryID); id != "" {
		if _, ok := m.categories[id]; ok {
			return id, true
		}
		for _, known := range m.CategoryOrder {
			if strings.EqualFold(known, id) {
				return known, true
			}
		}
	}
	return m.CategoryForRule(ruleID)
}
