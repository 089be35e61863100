// Package share normalizes heterogeneous share-picker input into a
// canonical ShareSet and combines share sets under merge-or-replace
// semantics. It only prepares requests; enforcement is server-side.
package share

import "intracal/internal/model"

// Normalize deduplicates raw picker selections by (targetType,
// targetId); when the same target appears twice the last occurrence
// wins. A grant without an explicit role receives defaultRole. Grants
// with an unknown target type or empty target id are dropped.
func Normalize(raw []model.ShareGrant, defaultRole model.Role) model.ShareSet {
	out := model.NewShareSet()
	for _, g := range raw {
		if g.TargetID == "" {
			continue
		}
		m := out.Mapping(g.TargetType)
		if m == nil {
			continue
		}
		role := g.Role
		if role == "" {
			role = defaultRole
		}
		m[g.TargetID] = role
	}
	return out
}

// Apply combines incoming with existing and returns a new set; neither
// input is mutated.
//
// REPLACE: incoming fully describes the new state — a target type with
// no entries in incoming ends up with no grants.
//
// MERGE: every (targetType, targetId) in incoming is inserted or
// overwritten into existing; targets present only in existing are kept.
//
// Either way the result stays duplicate-free per target type, since the
// mappings are keyed by target id.
func Apply(existing, incoming model.ShareSet, mode model.ApplyMode) model.ShareSet {
	if mode == model.ApplyReplace {
		return incoming.Clone()
	}

	out := existing.Clone()
	for _, t := range model.TargetTypes {
		dst := out.Mapping(t)
		for id, role := range incoming.Mapping(t) {
			dst[id] = role
		}
	}
	return out
}
