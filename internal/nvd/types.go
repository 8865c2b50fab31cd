package nvd

// Response is the CVE feed document returned for a keyword search. Nested
// blocks are pointers so that an absent block can be told apart from an
// empty one.
type Response struct {
	ResultsPerPage int     `json:"resultsPerPage"`
	StartIndex     int     `json:"startIndex"`
	TotalResults   int     `json:"totalResults"`
	Result         *Result `json:"result"`
}

// Result wraps the list of CVE items
type Result struct {
	DataType  string `json:"CVE_data_type"`
	Items     []Item `json:"CVE_Items"`
	Timestamp string `json:"CVE_data_timestamp"`
}

// Item is a single CVE entry
type Item struct {
	CVE              *CVE    `json:"cve"`
	Impact           *Impact `json:"impact"`
	PublishedDate    string  `json:"publishedDate"`
	LastModifiedDate string  `json:"lastModifiedDate"`
}

// CVE holds identity, description and references
type CVE struct {
	Meta        *Meta        `json:"CVE_data_meta"`
	Description *Description `json:"description"`
	References  *References  `json:"references"`
}

type Meta struct {
	ID       string `json:"ID"`
	Assigner string `json:"ASSIGNER"`
}

type Description struct {
	Data []LangString `json:"description_data"`
}

type LangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type References struct {
	Data []Reference `json:"reference_data"`
}

type Reference struct {
	URL       string   `json:"url"`
	Name      string   `json:"name"`
	RefSource string   `json:"refsource"`
	Tags      []string `json:"tags"`
}

// Impact carries the CVSS scoring blocks
type Impact struct {
	BaseMetricV3 *BaseMetricV3 `json:"baseMetricV3"`
}

type BaseMetricV3 struct {
	CVSSV3              *CVSSV3 `json:"cvssV3"`
	ExploitabilityScore float64 `json:"exploitabilityScore"`
	ImpactScore         float64 `json:"impactScore"`
}

type CVSSV3 struct {
	Version      string  `json:"version"`
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}
