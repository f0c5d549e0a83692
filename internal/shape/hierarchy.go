package shape

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/report"
)

const (
	RootLabel     = "Total Income"
	ExpensesLabel = "Expenses"
	SavingsLabel  = "Savings/Unspent"
)

// DefaultTolerance is the allowed drift between a node and the sum of its children.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Node is one sunburst sector. ID is unique within the tree; Parent is empty for the root.
type Node struct {
	ID     string
	Label  string
	Parent string
	Value  decimal.Decimal
}

// Tree is a flattened three level hierarchy: income, then expenses and savings,
// then one node per expense category.
type Tree struct {
	Nodes []Node
}

// Hierarchy builds the income tree from a breakdown. Savings may be negative when
// spending exceeds income; it is kept as is.
func Hierarchy(b report.Breakdown) Tree {
	nodes := []Node{
		{ID: RootLabel, Label: RootLabel, Value: b.TotalIncome},
		{ID: ExpensesLabel, Label: ExpensesLabel, Parent: RootLabel, Value: b.TotalExpenses},
		{ID: SavingsLabel, Label: SavingsLabel, Parent: RootLabel, Value: b.Savings()},
	}
	for _, c := range b.Categories {
		nodes = append(nodes, Node{
			ID:     ExpensesLabel + "/" + c.Category,
			Label:  c.Category,
			Parent: ExpensesLabel,
			Value:  c.Spent,
		})
	}
	return Tree{Nodes: nodes}
}

func (t Tree) node(id string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func (t Tree) childSum(parent string) decimal.Decimal {
	sum := decimal.Zero
	for _, n := range t.Nodes {
		if n.Parent == parent {
			sum = sum.Add(n.Value)
		}
	}
	return sum
}

// Check verifies that categories sum to Expenses and that Expenses plus Savings
// sum to Total Income, each within tol.
func (t Tree) Check(tol decimal.Decimal) error {
	root, ok := t.node(RootLabel)
	if !ok {
		return fmt.Errorf("hierarchy has no %q node", RootLabel)
	}
	expenses, ok := t.node(ExpensesLabel)
	if !ok {
		return fmt.Errorf("hierarchy has no %q node", ExpensesLabel)
	}

	if diff := t.childSum(ExpensesLabel).Sub(expenses.Value).Abs(); diff.GreaterThan(tol) {
		return fmt.Errorf("categories sum to %s, expenses is %s", t.childSum(ExpensesLabel), expenses.Value)
	}
	if diff := t.childSum(RootLabel).Sub(root.Value).Abs(); diff.GreaterThan(tol) {
		return fmt.Errorf("expenses and savings sum to %s, total income is %s", t.childSum(RootLabel), root.Value)
	}
	return nil
}
