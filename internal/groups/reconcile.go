package groups

import (
	"context"
	"slices"
	"sort"
)

// ReconcileReport summarises what a Reconcile pass changed.
type ReconcileReport struct {
	// NewlyHidden lists, per group, scenes hidden because OBS no longer has them.
	NewlyHidden map[string][]string `json:"newly_hidden"`

	// PrunedGroups lists hidden sets dropped because their group is gone.
	PrunedGroups []string `json:"pruned_groups"`

	// PrunedEntries counts hidden entries dropped because the scene left the group.
	PrunedEntries int `json:"pruned_entries"`
}

// Changed reports whether the pass modified anything.
func (r ReconcileReport) Changed() bool {
	return len(r.NewlyHidden) > 0 || len(r.PrunedGroups) > 0 || r.PrunedEntries > 0
}

// Reconcile checks every group against the scenes OBS currently has.
//
// Scenes missing from OBS are hidden, never removed, so a scene that was
// renamed away and back keeps its place in the rotation. Hidden scenes are
// not unhidden automatically when they reappear; that stays an operator
// decision. Hidden sets of deleted groups and hidden entries that are no
// longer in their group's list are dropped, so afterwards every hidden set
// is a subset of its group's scenes.
//
// The document is saved after every pass.
func (s *Store) Reconcile(ctx context.Context, live SceneSet) ReconcileReport {
	report := ReconcileReport{NewlyHidden: make(map[string][]string)}

	s.mu.Lock()
	for name, set := range s.hidden {
		g, ok := s.groups[name]
		if !ok {
			delete(s.hidden, name)
			report.PrunedGroups = append(report.PrunedGroups, name)
			continue
		}
		for sc := range set {
			if !slices.Contains(g.scenes, sc) {
				delete(set, sc)
				report.PrunedEntries++
			}
		}
		if len(set) == 0 {
			delete(s.hidden, name)
		}
	}

	for name, g := range s.groups {
		for _, sc := range g.scenes {
			if live.Contains(sc) {
				continue
			}
			set := s.hidden[name]
			if set == nil {
				set = make(map[string]struct{})
				s.hidden[name] = set
			}
			if _, already := set[sc]; already {
				continue
			}
			set[sc] = struct{}{}
			report.NewlyHidden[name] = append(report.NewlyHidden[name], sc)
		}
	}
	doc, v := s.commitLocked()
	s.mu.Unlock()

	sort.Strings(report.PrunedGroups)

	if report.Changed() {
		s.logger.Info("scene groups reconciled",
			"newly_hidden", report.NewlyHidden,
			"pruned_groups", report.PrunedGroups,
			"pruned_entries", report.PrunedEntries)
	}

	if err := s.persist(ctx, doc, v); err != nil {
		s.logger.Error("failed to save reconciled scene groups", "error", err)
	}
	if report.Changed() {
		s.notify(Change{Kind: ChangeUpdated})
	}
	return report
}
