package models

// Wire shapes returned by the remote contract-processing service.

// Entities is the extraction result of an uploaded document.
type Entities struct {
	Parties     []string `json:"parties"`
	Dates       []string `json:"dates"`
	Amounts     []string `json:"amounts"`
	Obligations []string `json:"obligations"`
}

// Analysis is the risk/compliance review of the last uploaded document.
type Analysis struct {
	RiskLevel        string   `json:"riskLevel"`
	MissingClauses   []string `json:"missingClauses"`
	AmbiguousTerms   []string `json:"ambiguousTerms"`
	ComplianceIssues []string `json:"complianceIssues"`
	Recommendations  []string `json:"recommendations"`
	LegalReasoning   string   `json:"legalReasoning"`
}

// ComplianceChecks reports the structural validation of a generated contract.
type ComplianceChecks struct {
	RequiredClauses bool `json:"requiredClauses"`
	LegalCompliance bool `json:"legalCompliance"`
	DurationValid   bool `json:"durationValid"`
	AmountsValid    bool `json:"amountsValid"`
}

// Contract is the generation result for a free-text request.
type Contract struct {
	Title            string           `json:"title"`
	Content          string           `json:"content"`
	ComplianceChecks ComplianceChecks `json:"complianceChecks"`
}

// Metrics is the evaluation snapshot shown in the evaluation overlay.
type Metrics struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	ErrorRate      float64 `json:"errorRate"`
	ProcessingTime float64 `json:"processingTime"`
}

// ContractRecord is the client-cached view of one generate or analyze
// outcome, exactly as the backend shaped it.
type ContractRecord struct {
	ContractID      string            `json:"contract_id,omitempty"`
	AnalysisID      string            `json:"analysis_id,omitempty"`
	ContractType    string            `json:"contract_type,omitempty"`
	Content         string            `json:"content,omitempty"`
	Validation      *ComplianceChecks `json:"validation,omitempty"`
	Entities        *Entities         `json:"entities,omitempty"`
	Analysis        *Analysis         `json:"analysis,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Risks           []string          `json:"risks,omitempty"`
	LegalCompliance string            `json:"legal_compliance,omitempty"`
}
