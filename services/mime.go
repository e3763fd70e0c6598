package services

import "strings"

// Canonical MIME types the pipeline branches on.
const (
	MimePDF  = "application/pdf"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDoc  = "application/msword"
	MimePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimePpt  = "application/vnd.ms-powerpoint"
	MimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXls  = "application/vnd.ms-excel"
)

// IsWordDocument reports whether the MIME type triggers DOCX->PDF
// pre-conversion.
func IsWordDocument(mimeType string) bool {
	return mimeType == MimeDocx || mimeType == MimeDoc
}

// IsPresentation reports whether the MIME type triggers slide extraction and
// background image enrichment.
func IsPresentation(mimeType string) bool {
	return mimeType == MimePptx || mimeType == MimePpt
}

// IsSpreadsheet reports whether the MIME type yields sheet counts.
func IsSpreadsheet(mimeType string) bool {
	return mimeType == MimeXlsx || mimeType == MimeXls
}

// ExtensionForMime maps a MIME type to the scratch-file extension the
// external converters expect.
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case MimePDF:
		return ".pdf"
	case MimeDocx:
		return ".docx"
	case MimeDoc:
		return ".doc"
	case MimePptx:
		return ".pptx"
	case MimePpt:
		return ".ppt"
	case MimeXlsx:
		return ".xlsx"
	case MimeXls:
		return ".xls"
	case "text/html":
		return ".html"
	case "text/markdown":
		return ".md"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tiff"
	default:
		if strings.HasPrefix(mimeType, "text/") {
			return ".txt"
		}
		return ".bin"
	}
}
