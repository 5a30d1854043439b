package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/docsense/docsense/internal/httperr"
	"github.com/docsense/docsense/internal/middleware"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DocumentHandler struct {
	documents *services.DocumentService
	downloads *services.DownloadService
}

func NewDocumentHandler(documents *services.DocumentService, downloads *services.DownloadService) *DocumentHandler {
	return &DocumentHandler{documents: documents, downloads: downloads}
}

func documentJSON(d *models.Document) fiber.Map {
	return fiber.Map{
		"id":            d.ID,
		"title":         d.Title,
		"fileType":      d.FileType,
		"fileSize":      d.FormattedSize(),
		"uploadedAt":    d.CreatedAt,
		"status":        d.Status,
		"uploadedBy":    d.UploadedBy,
		"isPublic":      d.IsPublic,
		"downloadCount": d.DownloadCount,
		"lastAccessed":  d.LastAccessed,
		"tags":          d.Tags,
		"security":      d.Security,
	}
}

func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("document")
	if err != nil {
		return httperr.Respond(c, httperr.Validation("No file uploaded"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return httperr.Respond(c, httperr.Validation("Failed to open uploaded file"))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadSize+1))
	if err != nil {
		return httperr.Respond(c, httperr.Internal("failed to read upload", err))
	}

	var tags []string
	if raw := c.FormValue("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	doc, err := h.documents.Upload(c.Context(), services.UploadInput{
		Title:    c.FormValue("title"),
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
		Tags:     tags,
		IsPublic: c.FormValue("isPublic") == "true",
		Owner:    middleware.CallerID(c),
	})
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Document uploaded successfully",
		"data":    fiber.Map{"document": documentJSON(doc)},
	})
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	q := services.ListQuery{
		Search:    c.Query("search"),
		FileType:  c.Query("type"),
		Status:    c.Query("status"),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 10),
		SortBy:    c.Query("sortBy", "created_at"),
		SortOrder: c.Query("sortOrder", "desc"),
	}

	docs, pagination, stats, err := h.documents.List(c.Context(), q, middleware.CallerID(c), middleware.CallerRole(c))
	if err != nil {
		return httperr.Respond(c, err)
	}

	items := make([]fiber.Map, 0, len(docs))
	for i := range docs {
		items = append(items, documentJSON(&docs[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"documents":  items,
			"pagination": pagination,
			"stats":      stats,
		},
	})
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	doc, err := h.documents.Get(c.Context(), id, middleware.CallerID(c), middleware.CallerRole(c))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"document": documentJSON(doc)},
	})
}

// View streams the document inline for the secure viewer, with caching
// disabled.
func (h *DocumentHandler) View(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	doc, stream, err := h.documents.View(c.Context(), id, middleware.CallerID(c), middleware.CallerRole(c))
	if err != nil {
		return httperr.Respond(c, err)
	}

	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", doc.OriginalName))
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	return c.SendStream(stream, int(doc.FileSize))
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	if err := h.documents.Delete(c.Context(), id, middleware.CallerID(c), middleware.CallerRole(c)); err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Document deleted successfully",
	})
}

// RequestDownload opens a download request for the caller.
func (h *DocumentHandler) RequestDownload(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	var in struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	req, err := h.downloads.CreateRequest(c.Context(), id, middleware.CallerID(c), in.Reason, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return httperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Download request submitted successfully",
		"data": fiber.Map{
			"requestId": req.ID,
			"status":    req.Status,
		},
	})
}

// DownloadStatus reports the caller's latest request for the document.
func (h *DocumentHandler) DownloadStatus(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	status, err := h.downloads.Status(c.Context(), id, middleware.CallerID(c))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    status,
	})
}

// Download redeems a token and streams the bytes as an attachment.
func (h *DocumentHandler) Download(c *fiber.Ctx) error {
	_, doc, err := h.downloads.ValidateAndConsume(c.Context(), c.Query("token"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	stream, err := h.documents.Stream(c.Context(), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}

	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.OriginalName))
	return c.SendStream(stream, int(doc.FileSize))
}

// ListRequests pages the ledger for admins.
func (h *DocumentHandler) ListRequests(c *fiber.Ctx) error {
	requests, total, err := h.downloads.ListRequests(c.Context(),
		c.Query("status"), c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return httperr.Respond(c, err)
	}

	limit := c.QueryInt("limit", 10)
	if limit < 1 {
		limit = 10
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"requests": requests,
			"pagination": fiber.Map{
				"currentPage":   c.QueryInt("page", 1),
				"totalPages":    (total + int64(limit) - 1) / int64(limit),
				"totalRequests": total,
			},
		},
	})
}

// Decide approves or rejects a pending request.
func (h *DocumentHandler) Decide(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return httperr.Respond(c, err)
	}

	var in struct {
		Action       string `json:"action"`
		Reason       string `json:"reason"`
		MaxDownloads int    `json:"maxDownloads"`
	}
	if err := c.BodyParser(&in); err != nil {
		return httperr.Respond(c, httperr.Validation("Invalid request body"))
	}

	req, err := h.downloads.Decide(c.Context(), id, middleware.CallerID(c),
		services.DecideAction(in.Action), in.MaxDownloads, in.Reason)
	if err != nil {
		return httperr.Respond(c, err)
	}

	data := fiber.Map{
		"requestId": req.ID,
		"status":    req.Status,
	}
	if req.Status == models.RequestApproved {
		data["downloadToken"] = req.DownloadToken
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Download request %sd successfully", in.Action),
		"data":    data,
	})
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, httperr.Validation("Invalid id format")
	}
	return id, nil
}
