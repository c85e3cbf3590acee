package inventory

import "testing"

func TestBuildPlan_SingleWarehouse(t *testing.T) {
	stock := map[string][]WarehouseStock{
		"p1": {{Warehouse: "WH1", Available: 10}, {Warehouse: "WH2", Available: 1}},
		"p2": {{Warehouse: "WH1", Available: 5}, {Warehouse: "WH2", Available: 5}},
	}
	items := []ItemRequest{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}}

	plan := BuildPlan(stock, items)
	if plan.Strategy != StrategySingleWarehouse {
		t.Fatalf("strategy = %s, want SINGLE_WAREHOUSE", plan.Strategy)
	}
	if plan.Candidates["p1"][0] != "WH1" || plan.Candidates["p2"][0] != "WH1" {
		t.Fatalf("expected WH1 as primary candidate for both items, got %v", plan.Candidates)
	}
}

func TestBuildPlan_SplitWhenNoSingleWarehouseFits(t *testing.T) {
	stock := map[string][]WarehouseStock{
		"p1": {{Warehouse: "WH1", Available: 2}, {Warehouse: "WH2", Available: 3}},
	}
	items := []ItemRequest{{ProductID: "p1", Quantity: 4}}

	plan := BuildPlan(stock, items)
	if plan.Strategy != StrategySplit {
		t.Fatalf("strategy = %s, want SPLIT", plan.Strategy)
	}
	// Neither warehouse alone satisfies qty 4; best-first order still WH2 (3) then WH1 (2).
	if plan.Candidates["p1"][0] != "WH2" {
		t.Fatalf("expected WH2 first (higher availability), got %v", plan.Candidates["p1"])
	}
}

func TestBuildPlan_NoStockAnywhere(t *testing.T) {
	stock := map[string][]WarehouseStock{}
	items := []ItemRequest{{ProductID: "ghost", Quantity: 1}}

	plan := BuildPlan(stock, items)
	if len(plan.Candidates["ghost"]) != 0 {
		t.Fatalf("expected no candidates for unknown product, got %v", plan.Candidates["ghost"])
	}
}
