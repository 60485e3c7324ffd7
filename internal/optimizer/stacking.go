package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/draftforge/engine/pkg/types"
)

// describeStack summarizes the largest team grouping in a lineup, e.g.
// "KC 3-stack (QB+WR+TE)". Lineups with no multi-player team return "".
func describeStack(players []types.LineupPlayer, pool map[string]types.Player) string {
	byTeam := make(map[string][]string)
	for _, lp := range players {
		tag := primaryPosition(pool[lp.ID])
		byTeam[lp.Team] = append(byTeam[lp.Team], tag)
	}

	bestTeam := ""
	bestCount := 1
	for team, tags := range byTeam {
		if len(tags) > bestCount || (len(tags) == bestCount && bestTeam != "" && team < bestTeam) {
			bestTeam = team
			bestCount = len(tags)
		}
	}
	if bestTeam == "" {
		return ""
	}

	tags := byTeam[bestTeam]
	sort.Strings(tags)
	return fmt.Sprintf("%s %d-stack (%s)", bestTeam, bestCount, strings.Join(tags, "+"))
}

// primaryPosition picks the first position tag for display purposes
func primaryPosition(p types.Player) string {
	if len(p.Positions) == 0 {
		return "?"
	}
	return p.Positions[0]
}

// countStackPlayers counts lineup players from one team over the rule's
// eligible positions; an empty position list counts every player.
func countStackPlayers(playerIDs []string, pool map[string]types.Player, rule types.StackRule) int {
	count := 0
	for _, id := range playerIDs {
		p, ok := pool[id]
		if !ok || p.Team != rule.Team {
			continue
		}
		if len(rule.Positions) == 0 {
			count++
			continue
		}
		for _, pos := range rule.Positions {
			if p.HasPosition(pos) {
				count++
				break
			}
		}
	}
	return count
}
