package data

// FileState pairs metadata with the textual content of the file.
type FileState struct {
	Metadata *FileMetadata `json:"metadata"`
	// Content is nil when the file exceeds the inline size ceiling
	// or is currently held by a writer.
	Content *string `json:"content,omitempty"`
	// DependentFiles is only populated when the query asked for it.
	DependentFiles []*FileState `json:"dependent_files,omitempty"`
}

// ContentString returns the content or an empty string.
func (s *FileState) ContentString() string {
	if s == nil || s.Content == nil {
		return ""
	}
	return *s.Content
}
