package models

import "strings"

// PreviewKind selects which preview surface should open an item.
type PreviewKind int

const (
	// PreviewNone means the item cannot be previewed at all.
	PreviewNone PreviewKind = iota

	// PreviewMedia is the audio/video player.
	PreviewMedia

	// PreviewContact is the contact-card viewer for vCard files.
	PreviewContact

	// PreviewText is the inline text viewer.
	PreviewText

	// PreviewPDF is the PDF viewer.
	PreviewPDF

	// PreviewImage is the image viewer.
	PreviewImage

	// PreviewExternal hands the file to an external application.
	PreviewExternal
)

// IsMedia reports whether the MIME type is playable audio or video.
func IsMedia(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/")
}

// IsVCard reports whether the MIME type is a contact card.
func IsVCard(mimeType string) bool {
	return mimeType == "text/vcard" || mimeType == "text/x-vcard"
}

// IsText reports whether the MIME type is plain previewable text.
// vCards are text/* on the wire but route to the contact viewer, so
// callers that care about precedence must check IsVCard first.
func IsText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") && !IsVCard(mimeType)
}

// IsPDF reports whether the MIME type is a PDF document.
func IsPDF(mimeType string) bool {
	return mimeType == "application/pdf"
}

// IsImage reports whether the MIME type is a displayable image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// PreviewKindFor routes a downloaded item to its preview surface using
// the fixed precedence media, contact card, text, PDF, then external
// open. Folders are never previewable.
func PreviewKindFor(it *Item) PreviewKind {
	if it == nil || it.Folder {
		return PreviewNone
	}

	switch {
	case IsMedia(it.MimeType):
		return PreviewMedia
	case IsVCard(it.MimeType):
		return PreviewContact
	case IsText(it.MimeType):
		return PreviewText
	case IsPDF(it.MimeType):
		return PreviewPDF
	default:
		return PreviewExternal
	}
}
