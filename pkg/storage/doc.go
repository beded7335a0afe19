// Package storage writes the files a run produces.
//
// Manager stores receipt images as <id>.jpg in the download directory.
// WriteFileAtomic is used for the listing details file. Both go through a
// temporary file in the destination directory followed by a rename, so an
// interrupted run never leaves a truncated image or details file behind.
// Existing files are replaced; there is no duplicate detection.
package storage
