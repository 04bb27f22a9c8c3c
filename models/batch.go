// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// BatchFile is one entry of a batch upload. Content is a pointer because an
// empty string is valid content while a missing field is not.
type BatchFile struct {
	Path        string  `json:"path"`
	Content     *string `json:"content"`
	ContentType string  `json:"contentType,omitempty"`
}

// BatchRequest is the body of a batch upload.
type BatchRequest struct {
	Files []BatchFile `json:"files"`
}

// BatchFileResult reports the outcome for a single file of a batch. Size is
// set only for stored files, so an empty stored file still reports 0.
type BatchFileResult struct {
	Path  string `json:"path"`
	OK    bool   `json:"ok"`
	Size  *int64 `json:"size,omitempty"`
	Error string `json:"error,omitempty"`
}

// BatchResult aggregates per-file outcomes. OK is true only when no file
// failed.
type BatchResult struct {
	OK       bool              `json:"ok"`
	Results  []BatchFileResult `json:"results"`
	Uploaded int               `json:"uploaded"`
	Failed   int               `json:"failed"`
	Usage    int64             `json:"usage"`
	Quota    int64             `json:"quota"`
}
