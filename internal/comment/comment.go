// Package comment models one exported live-stream chat row and loads the
// CSV export format produced by the streaming platform.
package comment

// Comment is one chat row from the export, immutable once loaded.
// Index is the 0-based position in the original file order and is the key
// that classification results are merged and re-sorted by.
type Comment struct {
	Index      int
	GuestID    string
	Username   string
	Text       string
	InsertedAt string

	// UserType is "moderator" for platform-flagged official accounts.
	// Optional column; empty when the export predates it.
	UserType string

	// UserID is a secondary account identifier. Any non-empty value marks
	// the row as posted by an official account.
	UserID string
}
