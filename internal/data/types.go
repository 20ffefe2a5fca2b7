package data

import (
	"fmt"
	"strings"
)

// DType is the discriminator tag that selects a record constructor.
type DType string

const (
	DTypeGeneric   DType = "generic"
	DTypeComponent DType = "component"
	DTypePage      DType = "page"
	DTypeTag       DType = "tag"
)

// FileType is the closed set of asset formats a component may be published in.
// The value doubles as the file extension used for downloads.
type FileType string

const (
	FileTypeFCStd FileType = "fcstd"
	FileTypeSTEP  FileType = "step"
	FileTypeSTL   FileType = "stl"
	FileTypeOBJ   FileType = "obj"
	FileTypeGLTF  FileType = "gltf"
	FileTypeZIP   FileType = "zip"
)

// FileTypes lists every known file type in display order.
var FileTypes = []FileType{FileTypeFCStd, FileTypeSTEP, FileTypeSTL, FileTypeOBJ, FileTypeGLTF, FileTypeZIP}

// Valid reports whether ft is a member of the enumeration.
func (ft FileType) Valid() bool {
	for _, known := range FileTypes {
		if ft == known {
			return true
		}
	}
	return false
}

// Extension returns the file extension without a leading dot.
func (ft FileType) Extension() string { return string(ft) }

// ParseFileType accepts a case-insensitive extension, with or without a leading dot.
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if !ft.Valid() {
		return "", &ValidationError{Field: "file_type", Msg: fmt.Sprintf("unknown file type %q", s)}
	}
	return ft, nil
}
