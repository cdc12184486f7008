package similarity

import "sort"

// GroupFinder clusters indexed sprites into families: palette swaps,
// variations and animation sequences.
type GroupFinder struct {
	Engine *Engine
}

// FindGroups returns groups of mutually similar sprites with at least
// minSize members, largest group first. Each offset appears in at most
// one group.
func (g *GroupFinder) FindGroups(threshold float64, minSize int) [][]int {
	if minSize < 2 {
		minSize = 2
	}

	processed := make(map[int]struct{})
	var groups [][]int

	for _, h := range g.Engine.Hashes() {
		if _, ok := processed[h.Offset]; ok {
			continue
		}

		similar := g.Engine.FindSimilar(h, 50, threshold)
		if len(similar) < minSize-1 {
			continue
		}

		group := []int{h.Offset}
		for _, m := range similar {
			if _, ok := processed[m.Offset]; !ok {
				group = append(group, m.Offset)
			}
		}
		if len(group) < minSize {
			continue
		}

		groups = append(groups, group)
		for _, offset := range group {
			processed[offset] = struct{}{}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i]) > len(groups[j]) })
	return groups
}

// FindAnimations chains offset-sorted sprites into frame sequences:
// consecutive frames must sit within proximity bytes of each other and
// score at least threshold against the previous frame.
func (g *GroupFinder) FindAnimations(proximity int, threshold float64) [][]int {
	hashes := g.Engine.Hashes()

	processed := make(map[int]struct{})
	var animations [][]int

	for i, h := range hashes {
		if _, ok := processed[h.Offset]; ok {
			continue
		}

		frames := []int{h.Offset}
		current := h

		for _, next := range hashes[i+1:] {
			if next.Offset-current.Offset > proximity {
				break
			}
			if _, ok := processed[next.Offset]; ok {
				continue
			}
			if Score(current, next) >= threshold {
				frames = append(frames, next.Offset)
				processed[next.Offset] = struct{}{}
				current = next
			}
		}

		if len(frames) >= 2 {
			animations = append(animations, frames)
		}
	}

	return animations
}
