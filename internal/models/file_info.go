package models

import "time"

// FileInfo represents metadata about a stored technology document.
type FileInfo struct {
	ID         string    `json:"id" msgpack:"id" cbor:"id"`
	Name       string    `json:"name" msgpack:"name" cbor:"name"`
	Size       int64     `json:"size" msgpack:"size" cbor:"size"`
	StoredSize int64     `json:"storedSize" msgpack:"storedSize" cbor:"storedSize"` // compressed size on disk
	Digest     string    `json:"digest" msgpack:"digest" cbor:"digest"`             // blake3 of the uncompressed content
	UploadedAt time.Time `json:"uploadedAt" msgpack:"uploadedAt" cbor:"uploadedAt"`
	Status     string    `json:"status" msgpack:"status" cbor:"status"` // "uploaded", "decoding", "decoded", "error"
}

// File status values.
const (
	FileStatusUploaded = "uploaded"
	FileStatusDecoding = "decoding"
	FileStatusDecoded  = "decoded"
	FileStatusError    = "error"
)
