// Package media identifies receipt uploads before they are handed to a scanner.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// MIME types accepted for scanning
const (
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeGIF  = "image/gif"
	TypeWEBP = "image/webp"
	TypeHEIC = "image/heic"
	TypeHEIF = "image/heif"
	TypePDF  = "application/pdf"
)

// MaxPages is the largest PDF accepted. Receipts longer than this are almost
// always statements or multi-receipt scans.
const MaxPages = 5

var (
	ErrEmptyUpload      = errors.New("empty upload")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooManyPages     = errors.New("too many pages")
)

// Info describes an upload
type Info struct {
	ContentType string `json:"content_type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Pages       int    `json:"pages"`
}

// IsImage reports whether the upload is a raster image rather than a document.
func (i Info) IsImage() bool {
	return strings.HasPrefix(i.ContentType, "image/")
}

// Inspect sniffs data, reconciles it with the declared content type and reads
// its dimensions or page count. The bytes are never modified.
func Inspect(data []byte, contentType string) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmptyUpload
	}

	mimeType := detect(data, contentType)
	info := Info{ContentType: mimeType, Pages: 1}

	switch mimeType {
	case TypeJPEG, TypePNG, TypeGIF:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Info{}, fmt.Errorf("%w: decoding image: %v", ErrUnsupportedMedia, err)
		}
		info.Width, info.Height = cfg.Width, cfg.Height
	case TypeHEIC, TypeHEIF:
		cfg, err := heic.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Info{}, fmt.Errorf("%w: decoding HEIC/HEIF image: %v", ErrUnsupportedMedia, err)
		}
		info.Width, info.Height = cfg.Width, cfg.Height
	case TypeWEBP:
		// No decoder in the standard library; the scanner accepts it as-is.
	case TypePDF:
		pages, err := pageCount(data)
		if err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
		}
		if pages > MaxPages {
			return Info{}, fmt.Errorf("%w: PDF has %d pages, at most %d allowed", ErrTooManyPages, pages, MaxPages)
		}
		info.Pages = pages
	default:
		return Info{}, fmt.Errorf("%w: %s. Supported formats: JPEG, PNG, GIF, WEBP, HEIC, HEIF, PDF", ErrUnsupportedMedia, mimeType)
	}

	return info, nil
}

func pageCount(data []byte) (int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}

// detect prefers what the bytes say over what the client claimed. The declared
// type only wins for formats the standard sniffer cannot recognise.
func detect(data []byte, declared string) string {
	if isHEIC(data) {
		return TypeHEIC
	}

	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	switch sniffed {
	case TypeJPEG, TypePNG, TypeGIF, TypeWEBP, TypePDF:
		return sniffed
	}

	return normalize(declared)
}

// normalize lowercases a content type and strips its parameters.
func normalize(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	switch contentType {
	case "image/jpg", "image/pjpeg":
		return TypeJPEG
	case "image/heic-sequence":
		return TypeHEIC
	case "image/heif-sequence":
		return TypeHEIF
	}
	return contentType
}

// isHEIC looks for an ftyp box with a HEIC/HEIF brand at offset 4
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "hevc", "mif1", "msf1":
		return true
	}
	return false
}
