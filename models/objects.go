package models

import "time"

// ObjectInfo describes a stored blob as seen by vault callers: the path is
// relative to the vault and Size is the encrypted (on-disk) byte length.
type ObjectInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
}

// ListPage is a single page of a vault listing.
type ListPage struct {
	Objects   []ObjectInfo `json:"objects"`
	Truncated bool         `json:"truncated"`
	Cursor    string       `json:"cursor,omitempty"`
	Usage     int64        `json:"usage"`
	Quota     int64        `json:"quota"`
}

// File is a decrypted blob returned by a get operation.
type File struct {
	Path        string
	Content     []byte
	ContentType string
}

// WriteResult is returned by put and append. Size is the plaintext length.
type WriteResult struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Usage int64  `json:"usage"`
	Quota int64  `json:"quota"`
}

// DeleteResult is returned by a single-path delete.
type DeleteResult struct {
	Deleted string `json:"deleted"`
}

// PurgeResult reports how many objects a purge removed.
type PurgeResult struct {
	Deleted int `json:"deleted"`
}

// VaultStatus summarizes a whole vault. LastSynced is nil for an empty vault.
type VaultStatus struct {
	VaultID    string     `json:"vaultId"`
	FileCount  int        `json:"fileCount"`
	Usage      int64      `json:"usage"`
	Quota      int64      `json:"quota"`
	LastSynced *time.Time `json:"lastSynced"`
}
