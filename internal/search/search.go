package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultContract ResultType = "contract"
	ResultClause   ResultType = "clause"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	ContractID   string     `json:"contractId"`
	Section      string     `json:"section,omitempty"`
	ClauseNumber string     `json:"clauseNumber,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text             string
	FilterType       ResultType // empty = all types
	FilterContractID string
	Limit            int
	Offset           int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ContractRecord is the data we index for a contract.
type ContractRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Reference  string `json:"reference"`
	Employer   string `json:"employer"`
	Contractor string `json:"contractor"`
	Status     string `json:"status"`
}

// ClauseRecord is the data we index for a clause.
type ClauseRecord struct {
	ID           string `json:"id"`
	ContractID   string `json:"contractId"`
	Section      string `json:"section"`
	ClauseNumber string `json:"clauseNumber"`
	Heading      string `json:"heading"`
	Body         string `json:"body"`
	CategoryID   string `json:"categoryId,omitempty"`
}
