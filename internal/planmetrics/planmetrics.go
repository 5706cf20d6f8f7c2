// Package planmetrics aggregates scan counters out of an executed query
// plan. Engines adapt their native plan representation into PlanNode trees;
// the aggregator is engine-agnostic.
package planmetrics

// CounterKind classifies a plan counter.
type CounterKind int

const (
	// CounterCount is a plain monotonically increasing count.
	CounterCount CounterKind = iota
	// CounterPruning reports how many file ranges a pruning pass removed.
	CounterPruning
)

// Counter is one named metric on a plan node.
type Counter struct {
	Name  string
	Kind  CounterKind
	Value uint64
}

// NodeMetrics is the metric set of a single plan node. ElapsedComputeNanos
// is nil when the node did not report compute time.
type NodeMetrics struct {
	Counters            []Counter
	ElapsedComputeNanos *uint64
}

// PlanNode is one operator in an executed plan tree. Metrics is nil for
// nodes that expose no metrics.
type PlanNode struct {
	Metrics  *NodeMetrics
	Children []*PlanNode
}

// ScanMetrics holds the aggregated scan counters. Each field is nil when no
// node in the plan reported a matching counter; a present zero means the
// counter was reported with value zero.
type ScanMetrics struct {
	FilesScanned *uint64
	FilesPruned  *uint64
	BytesScanned *uint64
	ScanTimeMS   *uint64
}

// Engines disagree on counter naming; every alias in a set contributes to
// the same aggregate.
var (
	filesScannedNames = []string{"files_scanned", "count_files_scanned"}
	filesPrunedNames  = []string{"files_pruned", "count_files_pruned"}
	pruningNames      = []string{"files_ranges_pruned_statistics"}
	bytesScannedNames = []string{"bytes_scanned"}
)

type accumulator struct {
	total uint64
	seen  bool
}

func (a *accumulator) add(v uint64) {
	sum := a.total + v
	if sum < a.total {
		sum = ^uint64(0)
	}
	a.total = sum
	a.seen = true
}

func (a *accumulator) result() *uint64 {
	if !a.seen {
		return nil
	}
	v := a.total
	return &v
}

// Aggregate walks the plan tree and sums scan counters across all nodes.
// Compute time is only attributed to scan nodes: a node counts as a scan
// node when it carries a file-scan, byte-scan, or pruning counter by name,
// whatever the counter's kind.
func Aggregate(root *PlanNode) ScanMetrics {
	var filesScanned, filesPruned, bytesScanned, elapsedNanos accumulator
	walk(root, &filesScanned, &filesPruned, &bytesScanned, &elapsedNanos)

	m := ScanMetrics{
		FilesScanned: filesScanned.result(),
		FilesPruned:  filesPruned.result(),
		BytesScanned: bytesScanned.result(),
	}
	if ms := elapsedNanos.result(); ms != nil {
		v := *ms / 1_000_000
		m.ScanTimeMS = &v
	}
	return m
}

func walk(node *PlanNode, filesScanned, filesPruned, bytesScanned, elapsedNanos *accumulator) {
	if node == nil {
		return
	}
	if node.Metrics != nil {
		if v, ok := sumCounts(node.Metrics, filesScannedNames); ok {
			filesScanned.add(v)
		}
		if v, ok := sumCounts(node.Metrics, filesPrunedNames); ok {
			filesPruned.add(v)
		}
		if v, ok := sumPruning(node.Metrics, pruningNames); ok {
			filesPruned.add(v)
		}
		if v, ok := sumCounts(node.Metrics, bytesScannedNames); ok {
			bytesScanned.add(v)
		}

		isScanNode := hasCounterName(node.Metrics, filesScannedNames) ||
			hasCounterName(node.Metrics, bytesScannedNames) ||
			hasCounterName(node.Metrics, pruningNames)
		if isScanNode && node.Metrics.ElapsedComputeNanos != nil {
			elapsedNanos.add(*node.Metrics.ElapsedComputeNanos)
		}
	}
	for _, child := range node.Children {
		walk(child, filesScanned, filesPruned, bytesScanned, elapsedNanos)
	}
}

func hasCounterName(m *NodeMetrics, names []string) bool {
	for _, c := range m.Counters {
		for _, name := range names {
			if c.Name == name {
				return true
			}
		}
	}
	return false
}

func sumCounts(m *NodeMetrics, names []string) (uint64, bool) {
	var total uint64
	seen := false
	for _, c := range m.Counters {
		if c.Kind != CounterCount {
			continue
		}
		for _, name := range names {
			if c.Name == name {
				total += c.Value
				seen = true
			}
		}
	}
	return total, seen
}

func sumPruning(m *NodeMetrics, names []string) (uint64, bool) {
	var total uint64
	seen := false
	for _, c := range m.Counters {
		if c.Kind != CounterPruning {
			continue
		}
		for _, name := range names {
			if c.Name == name {
				total += c.Value
				seen = true
			}
		}
	}
	return total, seen
}
