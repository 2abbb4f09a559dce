package versiondb

import (
	"context"
	"slices"

	"github.com/sushant-115/versiondb/core/request"
)

// VersionEntry is one version of a record in a version table.
type VersionEntry struct {
	RecordKey      string
	VersionKey     int64
	BeginTimestamp int64
	EndTimestamp   int64
	TxID           int64
	Record         []byte
}

func (e VersionEntry) clone() VersionEntry {
	e.Record = slices.Clone(e.Record)
	return e
}

// VersionRequestKind identifies the operation a VersionRequest carries.
type VersionRequestKind int

const (
	KindGetVersionList VersionRequestKind = iota
	KindUploadNewVersion
	KindReplaceVersionEntry
	KindDeleteVersionEntry
)

func (k VersionRequestKind) String() string {
	switch k {
	case KindGetVersionList:
		return "get_version_list"
	case KindUploadNewVersion:
		return "upload_new_version"
	case KindReplaceVersionEntry:
		return "replace_version_entry"
	case KindDeleteVersionEntry:
		return "delete_version_entry"
	default:
		return "unknown"
	}
}

// VersionRequest is a queued operation against one record of a version table.
type VersionRequest interface {
	RecordKey() string
	Kind() VersionRequestKind
	Handle() *request.Handle
	isVersionRequest()
}

type versionRequest struct {
	handle    *request.Handle
	recordKey string
}

func newVersionRequest(recordKey string) versionRequest {
	return versionRequest{handle: request.NewHandle(), recordKey: recordKey}
}

func (r *versionRequest) RecordKey() string              { return r.recordKey }
func (r *versionRequest) Handle() *request.Handle        { return r.handle }
func (r *versionRequest) isVersionRequest()              {}
func (r *versionRequest) Done() <-chan struct{}          { return r.handle.Done() }
func (r *versionRequest) Finished() bool                 { return r.handle.Finished() }
func (r *versionRequest) Err() error                     { return r.handle.Err() }
func (r *versionRequest) Wait(ctx context.Context) error { return r.handle.Wait(ctx) }

// GetVersionListRequest reads every version of a record, newest first.
type GetVersionListRequest struct {
	versionRequest
	versions []VersionEntry
}

func (r *GetVersionListRequest) Kind() VersionRequestKind { return KindGetVersionList }

func (r *GetVersionListRequest) Versions() []VersionEntry { return r.versions }

// UploadNewVersionRequest adds a version that must not exist yet.
type UploadNewVersionRequest struct {
	versionRequest
	Entry VersionEntry
}

func (r *UploadNewVersionRequest) Kind() VersionRequestKind { return KindUploadNewVersion }

// ReplaceVersionEntryRequest overwrites a version if it is still held by
// ExpectedTxID.
type ReplaceVersionEntryRequest struct {
	versionRequest
	Entry        VersionEntry
	ExpectedTxID int64
	current      VersionEntry
}

func (r *ReplaceVersionEntryRequest) Kind() VersionRequestKind { return KindReplaceVersionEntry }

// Current returns the stored entry after the request: the replacement on
// success, the untouched entry on ErrVersionConflict.
func (r *ReplaceVersionEntryRequest) Current() VersionEntry { return r.current }

// DeleteVersionEntryRequest removes one version of a record.
type DeleteVersionEntryRequest struct {
	versionRequest
	VersionKey int64
	deleted    VersionEntry
}

func (r *DeleteVersionEntryRequest) Kind() VersionRequestKind { return KindDeleteVersionEntry }

func (r *DeleteVersionEntryRequest) Deleted() VersionEntry { return r.deleted }
