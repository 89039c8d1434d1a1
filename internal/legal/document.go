package legal

// RelatedDocument is one entry of the portal's related-documents panel.
type RelatedDocument struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// DocumentInfo is the crawled metadata of one legal document.
type DocumentInfo struct {
	DocumentID     string                       `json:"document_id"`
	DocumentTitle  string                       `json:"document_title,omitempty"`
	DocumentStatus string                       `json:"document_status,omitempty"`
	EffectiveDate  string                       `json:"effective_date,omitempty"`
	ExpiredDate    string                       `json:"expired_date,omitempty"`
	Relationship   map[string][]RelatedDocument `json:"relationship,omitempty"`
}

// CrawledDocument is the unit the crawler hands to the pipeline.
type CrawledDocument struct {
	TextContent  string       `json:"text_content"`
	DocumentInfo DocumentInfo `json:"document_info"`
}

// Article is a flattened ARTICLE node annotated with its ancestors.
type Article struct {
	DocumentID string  `json:"document_id"`
	ID         string  `json:"id"`      // {document_id}_{ordinal}
	NodeID     string  `json:"node_id"` // structural id, e.g. dieu-13_muc-1_chuong-2
	Ordinal    int     `json:"ordinal"`
	Label      string  `json:"label"`
	Title      string  `json:"title,omitempty"`
	Chapter    *string `json:"chapter"`
	Section    *string `json:"section"`
	Content    string  `json:"content"`
	Clauses    []*Node `json:"clauses,omitempty"`
}
