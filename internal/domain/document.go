package domain

// DocumentVersion is written into every exported workflow file.
const DocumentVersion = "1.0.0"

// Document is the import/export file format for a workflow graph.
type Document struct {
	Name    string `json:"name"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Version string `json:"version"`
}
