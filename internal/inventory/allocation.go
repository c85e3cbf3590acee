package inventory

import "sort"

// WarehouseStock is one product's available quantity in one warehouse, as
// observed inside the locking transaction.
type WarehouseStock struct {
	Warehouse string
	Available int
}

// Plan is the ordered list of warehouses to attempt per product, computed
// once per Reserve call. The repo walks each product's candidate list in
// order, retrying the next candidate whenever a conditional update loses a
// race (spec §4.2.1 step 3).
type Plan struct {
	Strategy   string // SINGLE_WAREHOUSE | SPLIT
	Candidates map[string][]string
}

const (
	StrategySingleWarehouse = "SINGLE_WAREHOUSE"
	StrategySplit           = "SPLIT"
)

// BuildPlan implements the allocation policy of spec §4.2.1 step 2:
// single-warehouse-first, falling back to a per-item best-warehouse split.
// Per spec §9's open question, a single item is never split across two
// warehouses — if no one warehouse can satisfy it, it is reported PARTIAL.
func BuildPlan(stock map[string][]WarehouseStock, items []ItemRequest) Plan {
	single, found := findSingleWarehouse(stock, items)

	candidates := make(map[string][]string, len(items))
	for _, it := range items {
		rows := append([]WarehouseStock(nil), stock[it.ProductID]...)
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Available != rows[j].Available {
				return rows[i].Available > rows[j].Available
			}
			return rows[i].Warehouse < rows[j].Warehouse
		})

		var ordered []string
		if found {
			ordered = append(ordered, single)
		}
		for _, r := range rows {
			if r.Warehouse != single {
				ordered = append(ordered, r.Warehouse)
			}
		}
		candidates[it.ProductID] = ordered
	}

	strategy := StrategySplit
	if found {
		strategy = StrategySingleWarehouse
	}
	return Plan{Strategy: strategy, Candidates: candidates}
}

func findSingleWarehouse(stock map[string][]WarehouseStock, items []ItemRequest) (string, bool) {
	if len(items) == 0 {
		return "", false
	}

	warehouseSet := map[string]bool{}
	for _, r := range stock[items[0].ProductID] {
		warehouseSet[r.Warehouse] = true
	}
	var warehouses []string
	for w := range warehouseSet {
		warehouses = append(warehouses, w)
	}
	sort.Strings(warehouses)

	for _, w := range warehouses {
		satisfiesAll := true
		for _, it := range items {
			if availableIn(stock[it.ProductID], w) < it.Quantity {
				satisfiesAll = false
				break
			}
		}
		if satisfiesAll {
			return w, true
		}
	}
	return "", false
}

func availableIn(rows []WarehouseStock, warehouse string) int {
	for _, r := range rows {
		if r.Warehouse == warehouse {
			return r.Available
		}
	}
	return 0
}
