// Package authz is the single decision point for access checks on documents
// and download requests. All predicates are pure functions over the caller's
// identity, the caller's role, and the document's policy flags.
package authz

import (
	"strings"

	"github.com/docsense/docsense/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleSuperuser is the administrative role. Role names are stored uppercase,
// so comparisons fold case.
const RoleSuperuser = "superuser"

// IsAdmin reports whether the role carries administrative authority.
func IsAdmin(role string) bool {
	return strings.EqualFold(role, RoleSuperuser)
}

// CanView allows access to public documents, the document owner, and admins.
func CanView(doc *models.Document, userID primitive.ObjectID, role string) bool {
	if doc.IsPublic {
		return true
	}
	return IsAdmin(role) || doc.UploadedBy == userID
}

// CanDownload mirrors the original policy: the per-document allow_download
// flag opens direct downloads to anyone who can reach the document; otherwise
// only admins and the owner qualify without an approved request.
func CanDownload(doc *models.Document, userID primitive.ObjectID, role string) bool {
	if doc.Security.AllowDownload {
		return true
	}
	return IsAdmin(role) || doc.UploadedBy == userID
}

// CanDeleteDocument restricts deletion to the owner and admins. Public
// visibility grants no delete rights.
func CanDeleteDocument(doc *models.Document, userID primitive.ObjectID, role string) bool {
	return IsAdmin(role) || doc.UploadedBy == userID
}

// CanManageRequests reports whether the role may list and decide download
// requests.
func CanManageRequests(role string) bool {
	return IsAdmin(role)
}
