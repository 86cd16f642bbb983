package models

// SectionMatch pairs a web section with its distance to a query vector.
type SectionMatch struct {
	Section  *Section
	Distance float64
}

// ReferenceMatch pairs a reference chunk with its distance to a query vector.
type ReferenceMatch struct {
	Chunk    *ReferenceChunk
	Distance float64
}
