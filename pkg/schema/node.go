package schema

// NodeType enumerates the recognized kinds of traced operations.
type NodeType string

const (
	NodeTypeFunction      NodeType = "function"
	NodeTypeServiceCall   NodeType = "serviceCall"
	NodeTypeDatabaseQuery NodeType = "databaseQuery"
	NodeTypeMessageQueue  NodeType = "messageQueue"
	NodeTypeCacheOp       NodeType = "cacheOp"
	NodeTypeExternalAPI   NodeType = "externalAPI"
	NodeTypeInternalAPI   NodeType = "internalAPI"
	NodeTypeCompute       NodeType = "compute"
	NodeTypeDiskIO        NodeType = "diskIO"
	NodeTypeNetworkIO     NodeType = "networkIO"
	NodeTypeEvent         NodeType = "event"
	NodeTypeTask          NodeType = "task"

	// NodeTypeVirtualRoot marks a synthetic root introduced when a flat
	// list reconstructs into multiple disconnected trees. Never
	// user-authored.
	NodeTypeVirtualRoot NodeType = "virtualRoot"
)

// Status enumerates the outcome states of a traced operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
	StatusAborted Status = "aborted"
	StatusPending Status = "pending"
)

// ErrorInfo carries the structured failure record attached to a node
// whose status indicates an error.
type ErrorInfo struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	StackTrace string `json:"stackTrace,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Recognized metadata keys. Metadata is an open bag; these are the keys
// the engine itself interprets (resource rollups, sanitization).
const (
	MetaServiceName  = "serviceName"
	MetaHostName     = "hostName"
	MetaArguments    = "arguments"
	MetaReturnValue  = "returnValue"
	MetaCPUUsage     = "cpuUsage"     // percent
	MetaMemoryUsage  = "memoryUsage"  // KB
	MetaNetworkBytes = "networkBytes" // bytes transferred
	MetaTags         = "tags"
	MetaCost         = "cost"
)

// Node is one observed operation in a trace: a function call, network
// request, database query and so on. A tree is a single Node whose
// descendants form a strict acyclic hierarchy; child order is
// semantically meaningful and preserved through every transformation.
//
// Duration is the operation's own measured elapsed time in
// milliseconds. It is NOT guaranteed to equal the sum of children's
// durations: children may run concurrently or with gaps, so additive
// rollups over Duration are approximations, never wall-clock
// reconstructions.
//
// ParentCallID and Depth belong to the flat representation only:
// Flatten computes and attaches them, BuildTree consumes ParentCallID
// to re-link edges. Neither is meaningful on hand-authored trees.
type Node struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         NodeType       `json:"type,omitempty"`
	Duration     float64        `json:"duration"`
	StartTime    float64        `json:"startTime"`
	EndTime      float64        `json:"endTime"`
	Status       Status         `json:"status,omitempty"`
	Error        *ErrorInfo     `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Children     []*Node        `json:"children,omitempty"`
	ParentCallID string         `json:"parentCallId,omitempty"`
	Depth        int            `json:"depth,omitempty"`
}

// CloneShallow returns a copy of n with Children set to nil. Metadata
// and Error are deep-copied so the clone shares no mutable state with
// the original.
func (n *Node) CloneShallow() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Children = nil
	if n.Error != nil {
		e := *n.Error
		out.Error = &e
	}
	if n.Metadata != nil {
		out.Metadata = cloneMap(n.Metadata)
	}
	return &out
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := n.CloneShallow()
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// cloneMap deep-copies a metadata bag. Nested maps and slices are
// copied; scalar values are shared (they are immutable in practice,
// arriving from JSON decoding).
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
