// Package compaction implements the leveled compaction strategy: when
// to compact, which tables to pick, and how to merge them into new
// output tables (spec §4.11). The merge itself is grounded on
// other_examples/2866ec4a_ChinmayNoob-lsm-go's k-way heap merge; the
// level-budget/trigger policy is this engine's own, following the
// well-known leveled-compaction shape the spec names.
package compaction

import (
	"github.com/cqlite-go/cqlite/internal/manifest"
)

// DefaultLevel0Trigger and DefaultLevelSizeMultiplier are used by
// PlanNext when a caller passes a zero value, matching
// Config.CompactionLevel0FileTrigger/CompactionLevelSizeMultiplier's
// own defaults (storage.DefaultConfig) so the strategy behaves
// sensibly even invoked directly, outside the storage coordinator.
const (
	DefaultLevel0Trigger       = 4
	DefaultLevelSizeMultiplier = 10
)

// levelSizeBudget returns the maximum number of tables level desires
// to hold before it is "over budget" and a table should be pushed down
// to level+1. For level 0 it returns the level-0 table-count trigger
// (level-0 tables can overlap arbitrarily); level n >= 1 gets
// sizeMultiplier^n tables.
func levelSizeBudget(level, level0Trigger, sizeMultiplier int) int {
	if level0Trigger <= 0 {
		level0Trigger = DefaultLevel0Trigger
	}
	if sizeMultiplier <= 0 {
		sizeMultiplier = DefaultLevelSizeMultiplier
	}
	if level <= 0 {
		return level0Trigger
	}
	budget := sizeMultiplier
	for i := 1; i < level; i++ {
		budget *= sizeMultiplier
	}
	return budget
}

// Task describes one compaction to run: merge inputs (all from
// fromLevel, plus any overlapping tables already at toLevel) into new
// tables installed at toLevel.
type Task struct {
	FromLevel int
	ToLevel   int
	Inputs    []manifest.TableRef
}

// PlanNext inspects tables and returns the next compaction to run, or
// nil if every level is within budget. Level 0 is checked first (its
// tables can overlap arbitrarily, so the longer it goes uncompacted the
// more reads must fan out across it); higher levels are then checked
// in order, each compacting into the level below it. level0Trigger and
// sizeMultiplier of zero fall back to DefaultLevel0Trigger/
// DefaultLevelSizeMultiplier.
func PlanNext(tables []manifest.TableRef, level0Trigger, sizeMultiplier int) *Task {
	byLevel := map[int][]manifest.TableRef{}
	maxLevel := 0
	for _, t := range tables {
		byLevel[t.Level] = append(byLevel[t.Level], t)
		if t.Level > maxLevel {
			maxLevel = t.Level
		}
	}

	if len(byLevel[0]) >= levelSizeBudget(0, level0Trigger, sizeMultiplier) {
		return &Task{
			FromLevel: 0,
			ToLevel:   1,
			Inputs:    append(append([]manifest.TableRef{}, byLevel[0]...), byLevel[1]...),
		}
	}

	for level := 1; level <= maxLevel; level++ {
		if len(byLevel[level]) > levelSizeBudget(level, level0Trigger, sizeMultiplier) {
			chosen := fewestOverlapTable(byLevel[level])
			overlapping := overlappingTables(chosen, byLevel[level+1])
			return &Task{
				FromLevel: level,
				ToLevel:   level + 1,
				Inputs:    append([]manifest.TableRef{chosen}, overlapping...),
			}
		}
	}

	return nil
}

// fewestOverlapTable picks the table most worth compacting out of
// level: without per-table key-range metadata available to this
// planning pass, the oldest generation is the best proxy (it has had
// the longest to accumulate now-superseded rows beneath newer writes).
// A richer selection (true key-range overlap against level+1) belongs
// in the storage coordinator, which holds the opened Readers this
// package intentionally does not depend on.
func fewestOverlapTable(level []manifest.TableRef) manifest.TableRef {
	best := level[0]
	for _, t := range level[1:] {
		if t.Generation < best.Generation {
			best = t
		}
	}
	return best
}

// overlappingTables has no key ranges to compare, so it conservatively
// treats every table at the target level as overlapping and returns
// them all. The storage coordinator passes the resulting Task to
// compaction.Run unchanged.
func overlappingTables(_ manifest.TableRef, level []manifest.TableRef) []manifest.TableRef {
	return level
}
