package pipeline

// WorkMessage asks the processor to acquire and segment one item.
type WorkMessage struct {
	ItemID   string `json:"item_id"`
	URL      string `json:"url"`
	BatchKey string `json:"batch_key,omitempty"`
}

// SegmentMessage announces one segment artifact ready for transcription.
type SegmentMessage struct {
	ItemID       string   `json:"item_id"`
	SegmentIndex int      `json:"segment_index"`
	SegmentCount int      `json:"segment_count"`
	ArtifactKey  string   `json:"artifact_key"`
	OffsetMs     int64    `json:"offset_ms"`
	BatchKey     string   `json:"batch_key,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	Metadata     Metadata `json:"metadata"`
}
