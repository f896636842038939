package shl

// manifest.go defines the manifest document served to link holders and the
// artifact names under which a link's files are stored.

import (
	"fmt"
	"strings"
)

// Artifact names used within a link's storage namespace.
const (
	// ContentArtifact holds the encrypted primary payload
	ContentArtifact = "content.jwe"

	// ManifestArtifact holds the manifest document
	ManifestArtifact = "manifest.json"

	// MetadataArtifact holds the access metadata (policy + counters)
	MetadataArtifact = "metadata.json"

	// PlaintextArtifact holds the optional plaintext echo of the payload.
	// Only written in debug deployments, never in production.
	PlaintextArtifact = "content.json"

	// AccessEventPrefix is the namespace for access audit events
	AccessEventPrefix = "access/"
)

// AttachmentArtifact returns the artifact name of attachment n (0-based).
func AttachmentArtifact(n int) string {
	return fmt.Sprintf("attachment-%d.jwe", n)
}

// IsServableArtifact reports whether name refers to an artifact the content
// endpoint may serve: the encrypted payload or an encrypted attachment.
// Manifest, metadata, audit events and the plaintext echo are never served.
func IsServableArtifact(name string) bool {
	if name == ContentArtifact {
		return true
	}
	n, ok := strings.CutPrefix(name, "attachment-")
	if !ok {
		return false
	}
	n, ok = strings.CutSuffix(n, ".jwe")
	if !ok || n == "" {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ManifestStatus describes whether the content behind a link can still
// change.
type ManifestStatus string

const (
	// ManifestStatusFinalized: the content is complete and will not change
	ManifestStatusFinalized ManifestStatus = "finalized"

	// ManifestStatusCanChange: the content may be updated after creation
	ManifestStatusCanChange ManifestStatus = "can-change"

	// ManifestStatusNoLongerValid: the content has been superseded
	ManifestStatusNoLongerValid ManifestStatus = "no-longer-valid"
)

// Manifest is the document returned by a successful manifest request.
// It lists the files the link grants access to; each location is an
// absolute URL serving ciphertext that the link key decrypts.
type Manifest struct {
	Files  []ManifestFile `json:"files"`
	Status ManifestStatus `json:"status"`
}

// ManifestFile describes one retrievable file.
type ManifestFile struct {
	// ContentType is the media type of the decrypted file
	ContentType string `json:"contentType"`

	// Location is the absolute URL serving the encrypted file
	Location string `json:"location"`
}

// BuildManifest assembles the manifest for a freshly created link:
// the primary payload first, then attachments in creation order, all
// located under the service base URL and marked finalized.
func BuildManifest(baseURL, linkID, contentType string, attachmentTypes []string) Manifest {
	files := make([]ManifestFile, 0, 1+len(attachmentTypes))
	files = append(files, ManifestFile{
		ContentType: contentType,
		Location:    ContentLocation(baseURL, linkID, ContentArtifact),
	})
	for n, ct := range attachmentTypes {
		files = append(files, ManifestFile{
			ContentType: ct,
			Location:    ContentLocation(baseURL, linkID, AttachmentArtifact(n)),
		})
	}
	return Manifest{Files: files, Status: ManifestStatusFinalized}
}

// ManifestURL returns the absolute manifest URL for a link id.
func ManifestURL(baseURL, linkID string) string {
	return fmt.Sprintf("%s/manifests/%s", strings.TrimSuffix(baseURL, "/"), linkID)
}

// ContentLocation returns the absolute URL serving one of a link's
// encrypted artifacts.
func ContentLocation(baseURL, linkID, artifact string) string {
	return fmt.Sprintf("%s/content/%s/%s", strings.TrimSuffix(baseURL, "/"), linkID, artifact)
}
