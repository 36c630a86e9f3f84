package schemas

// Pattern is a recurring action-type sequence mined from observed scripts.
// It is keyed by the literal ordered sequence; Count is monotonically
// non-decreasing under repeated observation.
type Pattern struct {
	Sequence []ActionType `json:"pattern"`
	Count    int          `json:"count"`
	Examples []string     `json:"examples"`
}

// KnowledgeSnapshot is the on-disk shape of the knowledge base and the
// exchange format between the source analyzer, the learner and the
// interpreter.
type KnowledgeSnapshot struct {
	ElementMappings map[string]string `json:"element_mappings"`
	Routes          []string          `json:"routes"`
	Components      []string          `json:"components"`
	APIEndpoints    []string          `json:"api_endpoints"`
}
