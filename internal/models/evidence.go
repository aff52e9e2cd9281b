package models

import "encoding/json"

// EvidenceRecord is a structured annotation returned by the graph store.
type EvidenceRecord struct {
	Filename  string    `json:"filename" validate:"required,filename,no_null_bytes"`
	Dimension Dimension `json:"dimension" validate:"required,dimension"`
	Level     Level     `json:"level" validate:"required,max=64,no_null_bytes"`
	Reason    string    `json:"reason" validate:"no_null_bytes"`
}

// EvidenceBundle is the validated evidence gathered for one critique request.
type EvidenceBundle struct {
	Records []EvidenceRecord `json:"records"`
}

// Empty reports whether the bundle carries no records.
func (b EvidenceBundle) Empty() bool {
	return len(b.Records) == 0
}

// JSON serializes the records as a JSON array for prompt inclusion.
func (b EvidenceBundle) JSON() string {
	records := b.Records
	if records == nil {
		records = []EvidenceRecord{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "[]"
	}

	return string(data)
}
