package routes

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"knowledgebase-platform/internal/config"
	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/internal/queue"
	"knowledgebase-platform/internal/storage"
	"knowledgebase-platform/middleware"
	"knowledgebase-platform/models"
	"knowledgebase-platform/services"
	"knowledgebase-platform/utils"
)

// HandleDocumentUpload accepts a file, stores it, creates the pending document
// record, and enqueues the ingestion job. Returns 202 immediately; the actual
// processing happens on the worker.
func HandleDocumentUpload(cfg *config.Config, store *services.MongoStore, objects *storage.ObjectStore, queueClient *queue.Client) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = true
	}

	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No file provided", nil)
			return
		}
		defer file.Close()

		mimeType := header.Header.Get("Content-Type")
		if !allowed[mimeType] {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", "Unsupported file type: "+mimeType, nil)
			return
		}

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit", nil)
			return
		}

		documentID := uuid.NewString()
		encryptedFilename := "documents/" + userID + "/" + documentID + services.ExtensionForMime(mimeType)

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		if err := objects.StoreStream(ctx, encryptedFilename,
			io.LimitReader(file, cfg.MaxFileSize), header.Size, mimeType); err != nil {
			logger.Error("failed to store upload", "document_id", documentID, "error", err)
			utils.RespondWithError(c, http.StatusInternalServerError, "storage_error", "Failed to store file", nil)
			return
		}

		now := time.Now()
		doc := &models.Document{
			ID:           documentID,
			UserID:       userID,
			Filename:     encryptedFilename,
			OriginalName: filepath.Base(header.Filename),
			MimeType:     mimeType,
			Size:         header.Size,
			FolderID:     c.PostForm("folder_id"),
			FolderName:   c.PostForm("folder_name"),
			FolderPath:   c.PostForm("folder_path"),
			Status:       models.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := store.InsertDocument(ctx, doc); err != nil {
			objects.Remove(ctx, encryptedFilename)
			utils.RespondWithError(c, http.StatusInternalServerError, "database_error", "Failed to create document record", nil)
			return
		}

		info, err := queueClient.EnqueueIngestion(ctx, models.IngestionJob{
			DocumentID:        documentID,
			UserID:            userID,
			EncryptedFilename: encryptedFilename,
			MimeType:          mimeType,
			FileSizeBytes:     header.Size,
		})
		if err != nil {
			objects.Remove(ctx, encryptedFilename)
			store.DeleteDocument(ctx, documentID)
			utils.RespondWithError(c, http.StatusInternalServerError, "queue_error", "Failed to enqueue processing task", nil)
			return
		}

		resp := gin.H{
			"message":     "Document accepted for processing",
			"document_id": documentID,
			"status":      models.StatusPending,
			"filename":    doc.OriginalName,
			"size":        header.Size,
			"created_at":  doc.CreatedAt,
		}
		if info != nil {
			resp["task_id"] = info.ID
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

// CheckDocumentStatus returns the durable state of one document.
func CheckDocumentStatus(store *services.MongoStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("documentID")
		userID := middleware.GetUserID(c)

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		doc, err := store.GetDocument(ctx, documentID)
		if err != nil || doc.UserID != userID {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id":          doc.ID,
			"filename":             doc.OriginalName,
			"status":               doc.Status,
			"error_message":        doc.ErrorMessage,
			"embeddings_generated": doc.EmbeddingsGenerated,
			"chunks_count":         doc.ChunksCount,
			"size":                 doc.Size,
			"created_at":           doc.CreatedAt,
			"updated_at":           doc.UpdatedAt,
			"processed_at":         doc.ProcessedAt,
		})
	}
}

// GetDocumentProgress returns the live progress snapshot, falling back to the
// durable document state when the snapshot expired.
func GetDocumentProgress(store *services.MongoStore, progress *services.RedisProgressNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("documentID")
		userID := middleware.GetUserID(c)

		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		doc, err := store.GetDocument(ctx, documentID)
		if err != nil || doc.UserID != userID {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		record, err := progress.GetProgress(ctx, documentID)
		if err != nil {
			logger.Warn("failed to read progress snapshot", "document_id", documentID, "error", err)
		}
		if record != nil {
			c.JSON(http.StatusOK, gin.H{
				"document_id": documentID,
				"progress":    record.Progress,
				"stage":       record.Stage,
				"message":     record.Message,
				"updated_at":  record.UpdatedAt,
			})
			return
		}

		// No snapshot: synthesize from the document record
		pct := 0
		if doc.Status == models.StatusCompleted {
			pct = 100
		}
		c.JSON(http.StatusOK, gin.H{
			"document_id": documentID,
			"progress":    pct,
			"stage":       doc.Status,
			"message":     doc.ErrorMessage,
		})
	}
}

// ListDocuments pages through the caller's documents, newest first.
func ListDocuments(store *services.MongoStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		pageInt := 1
		limitInt := 10
		if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
			pageInt = p
		}
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 && l <= 100 {
			limitInt = l
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		docs, total, err := store.ListDocuments(ctx, userID,
			int64((pageInt-1)*limitInt), int64(limitInt))
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "database_error", "Failed to retrieve documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"pagination": gin.H{
				"page":        pageInt,
				"limit":       limitInt,
				"total":       total,
				"total_pages": (total + int64(limitInt) - 1) / int64(limitInt),
			},
		})
	}
}

// GetDocumentDownloadURL presigns a short-lived GET for the original file, or
// the converted PDF rendering when ?rendering=pdf is set and one exists.
func GetDocumentDownloadURL(cfg *config.Config, store *services.MongoStore, objects *storage.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("documentID")
		userID := middleware.GetUserID(c)

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		doc, err := store.GetDocument(ctx, documentID)
		if err != nil || doc.UserID != userID {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		objectPath := doc.Filename
		if c.Query("rendering") == "pdf" && doc.RenderableContent != "" {
			objectPath = doc.RenderableContent
		}

		url, err := objects.PresignedURL(ctx, objectPath, cfg.SignedURLExpiry)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "storage_error", "Failed to generate download URL", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": documentID,
			"url":         url,
			"expires_in":  int(cfg.SignedURLExpiry.Seconds()),
		})
	}
}
