package accounting

import "sort"

// AccountNode is an account with its resolved children, ordered by code.
type AccountNode struct {
	Account
	Children []*AccountNode
}

// CostCenterNode is a cost center with its resolved children, ordered by code.
type CostCenterNode struct {
	CostCenter
	Children []*CostCenterNode
}

// BuildAccountTree assembles the chart of accounts into root nodes. A parent
// reference to a missing account or a cycle in the parent chain is rejected.
func BuildAccountTree(accounts []Account) ([]*AccountNode, error) {
	nodes := make(map[int64]*AccountNode, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &AccountNode{Account: a}
	}
	var roots []*AccountNode
	for _, a := range accounts {
		node := nodes[a.ID]
		if a.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*a.ParentID]
		if !ok {
			return nil, ErrAccountNotFound
		}
		parent.Children = append(parent.Children, node)
	}
	if err := detectAccountCycle(accounts); err != nil {
		return nil, err
	}
	sortAccountNodes(roots)
	return roots, nil
}

// BuildCostCenterTree assembles cost centers the same way as accounts.
func BuildCostCenterTree(centers []CostCenter) ([]*CostCenterNode, error) {
	nodes := make(map[int64]*CostCenterNode, len(centers))
	for _, c := range centers {
		nodes[c.ID] = &CostCenterNode{CostCenter: c}
	}
	parents := make(map[int64]*int64, len(centers))
	var roots []*CostCenterNode
	for _, c := range centers {
		parents[c.ID] = c.ParentID
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			return nil, ErrAccountNotFound
		}
		parent.Children = append(parent.Children, node)
	}
	if err := detectCycle(parents); err != nil {
		return nil, err
	}
	sortCostCenterNodes(roots)
	return roots, nil
}

func detectAccountCycle(accounts []Account) error {
	parents := make(map[int64]*int64, len(accounts))
	for _, a := range accounts {
		parents[a.ID] = a.ParentID
	}
	return detectCycle(parents)
}

// detectCycle walks every parent chain; revisiting a node within one walk means a loop.
func detectCycle(parents map[int64]*int64) error {
	for id := range parents {
		seen := map[int64]bool{}
		current := id
		for {
			if seen[current] {
				return ErrChartCycle
			}
			seen[current] = true
			parent, ok := parents[current]
			if !ok || parent == nil {
				break
			}
			current = *parent
		}
	}
	return nil
}

func sortAccountNodes(nodes []*AccountNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	for _, n := range nodes {
		sortAccountNodes(n.Children)
	}
}

func sortCostCenterNodes(nodes []*CostCenterNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	for _, n := range nodes {
		sortCostCenterNodes(n.Children)
	}
}
