package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/khaledhikmat/nsfw-go/model"
)

var extKinds = map[string]model.FormatKind{
	// images
	".jpg": model.FormatImage, ".jpeg": model.FormatImage, ".png": model.FormatImage,
	".gif": model.FormatImage, ".bmp": model.FormatImage, ".webp": model.FormatImage,
	".tiff": model.FormatImage, ".tif": model.FormatImage,

	// pdf
	".pdf": model.FormatPdf,

	// video
	".mp4": model.FormatVideo, ".avi": model.FormatVideo, ".mkv": model.FormatVideo,
	".mov": model.FormatVideo, ".wmv": model.FormatVideo, ".webm": model.FormatVideo,
	".ts": model.FormatVideo, ".flv": model.FormatVideo, ".m4v": model.FormatVideo,
	".mpg": model.FormatVideo, ".mpeg": model.FormatVideo, ".3gp": model.FormatVideo,

	// archives
	".zip": model.FormatArchive, ".tar": model.FormatArchive, ".gz": model.FormatArchive,
	".tgz": model.FormatArchive, ".rar": model.FormatArchive, ".7z": model.FormatArchive,
	".bz2": model.FormatArchive, ".xz": model.FormatArchive, ".zst": model.FormatArchive,
}

var archiveMimes = map[string]bool{
	"application/zip":              true,
	"application/x-tar":            true,
	"application/gzip":             true,
	"application/x-rar-compressed": true,
	"application/x-rar":            true,
	"application/vnd.rar":          true,
	"application/x-7z-compressed":  true,
	"application/x-bzip2":          true,
	"application/x-xz":             true,
	"application/zstd":             true,
}

// Identify resolves a file to a FormatKind from its declared name and, when
// the extension is absent or unknown, from its leading bytes. It is a pure
// function; an unrecognized input is FormatUnsupported, never an error.
func Identify(declaredName string, head []byte) model.FormatKind {
	ext := strings.ToLower(filepath.Ext(declaredName))
	if kind, ok := extKinds[ext]; ok {
		return kind
	}

	if len(head) == 0 {
		return model.FormatUnsupported
	}

	mt := mimetype.Detect(head)
	switch {
	case mt.Is("image/x-icon"):
		// no decoder for ico on the classification path
		return model.FormatUnsupported
	case strings.HasPrefix(mt.String(), "image/"):
		return model.FormatImage
	case strings.HasPrefix(mt.String(), "video/"):
		return model.FormatVideo
	case mt.Is("application/pdf"):
		return model.FormatPdf
	case archiveMimes[mt.String()]:
		return model.FormatArchive
	}

	return model.FormatUnsupported
}
