package compaction

import (
	"testing"

	"github.com/cqlite-go/cqlite/internal/manifest"
)

func TestPlanNextLevelZeroTrigger(t *testing.T) {
	var tables []manifest.TableRef
	for i := int64(1); i <= DefaultLevel0Trigger; i++ {
		tables = append(tables, manifest.TableRef{Generation: i, Level: 0})
	}

	task := PlanNext(tables, 0, 0)
	if task == nil {
		t.Fatal("expected a level-0 compaction task")
	}
	if task.FromLevel != 0 || task.ToLevel != 1 {
		t.Fatalf("task = %+v, want FromLevel 0 ToLevel 1", task)
	}
	if len(task.Inputs) != DefaultLevel0Trigger {
		t.Fatalf("got %d inputs, want %d", len(task.Inputs), DefaultLevel0Trigger)
	}
}

func TestPlanNextReturnsNilWhenWithinBudget(t *testing.T) {
	tables := []manifest.TableRef{
		{Generation: 1, Level: 0},
		{Generation: 2, Level: 1},
	}
	if task := PlanNext(tables, 0, 0); task != nil {
		t.Fatalf("expected no compaction needed, got %+v", task)
	}
}

func TestPlanNextOverBudgetLevelPicksOldestGeneration(t *testing.T) {
	var tables []manifest.TableRef
	for i := int64(1); i <= int64(levelSizeBudget(1, 0, 0))+1; i++ {
		tables = append(tables, manifest.TableRef{Generation: i, Level: 1})
	}

	task := PlanNext(tables, 0, 0)
	if task == nil {
		t.Fatal("expected level 1 to be over budget")
	}
	if task.FromLevel != 1 || task.ToLevel != 2 {
		t.Fatalf("task = %+v, want FromLevel 1 ToLevel 2", task)
	}
	if task.Inputs[0].Generation != 1 {
		t.Fatalf("expected oldest generation (1) chosen first, got %d", task.Inputs[0].Generation)
	}
}

func TestPlanNextHonorsCustomLevel0Trigger(t *testing.T) {
	tables := []manifest.TableRef{
		{Generation: 1, Level: 0},
		{Generation: 2, Level: 0},
	}
	if task := PlanNext(tables, 2, 10); task == nil {
		t.Fatal("expected a custom trigger of 2 to fire with 2 level-0 tables")
	}
}
