package models

import (
	"time"
)

// Document represents an uploaded file tracked through the ingestion pipeline.
// The pipeline is the only writer of Status during ingestion.
type Document struct {
	ID                  string     `bson:"_id" json:"id"`
	UserID              string     `bson:"user_id" json:"user_id"`
	Filename            string     `bson:"filename" json:"filename"` // encrypted object-store name
	OriginalName        string     `bson:"original_name" json:"original_name"`
	MimeType            string     `bson:"mime_type" json:"mime_type"`
	Size                int64      `bson:"size" json:"size"`
	FolderID            string     `bson:"folder_id,omitempty" json:"folder_id,omitempty"`
	FolderName          string     `bson:"folder_name,omitempty" json:"folder_name,omitempty"`
	FolderPath          string     `bson:"folder_path,omitempty" json:"folder_path,omitempty"`
	Status              string     `bson:"status" json:"status"` // pending, completed, failed
	ErrorMessage        string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	EmbeddingsGenerated bool       `bson:"embeddings_generated" json:"embeddings_generated"`
	ChunksCount         int        `bson:"chunks_count" json:"chunks_count"`
	RenderableContent   string     `bson:"renderable_content,omitempty" json:"renderable_content,omitempty"` // object path of converted PDF
	CreatedAt           time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at" json:"updated_at"`
	ProcessedAt         *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// DocumentMetadata is the extraction/transform output persisted 1:1 per document.
// SlidesData is the only field mutated after job completion (background image merge).
type DocumentMetadata struct {
	DocumentID        string             `bson:"_id" json:"document_id"`
	ExtractedText     string             `bson:"extracted_text" json:"extracted_text"`
	Confidence        *float64           `bson:"confidence,omitempty" json:"confidence,omitempty"`
	PageCount         *int               `bson:"page_count,omitempty" json:"page_count,omitempty"`
	WordCount         *int               `bson:"word_count,omitempty" json:"word_count,omitempty"`
	SheetCount        *int               `bson:"sheet_count,omitempty" json:"sheet_count,omitempty"`
	MarkdownContent   *string            `bson:"markdown_content,omitempty" json:"markdown_content,omitempty"`
	MarkdownStructure *MarkdownStructure `bson:"markdown_structure,omitempty" json:"markdown_structure,omitempty"`
	SlidesData        []SlideInfo        `bson:"slides_data,omitempty" json:"slides_data,omitempty"`
	PptxMetadata      *PptxMetadata      `bson:"pptx_metadata,omitempty" json:"pptx_metadata,omitempty"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// MarkdownStructure describes headings extracted during markdown conversion,
// used by the UI for deep links into the rendered document.
type MarkdownStructure struct {
	Headings []MarkdownHeading `bson:"headings" json:"headings"`
}

type MarkdownHeading struct {
	Level int    `bson:"level" json:"level"`
	Text  string `bson:"text" json:"text"`
	Line  int    `bson:"line" json:"line"`
}

// SlideInfo holds per-slide extraction output. ImageURLs is filled in later by
// the background post-processor, matched on SlideNumber.
type SlideInfo struct {
	SlideNumber int      `bson:"slide_number" json:"slide_number"`
	Title       string   `bson:"title,omitempty" json:"title,omitempty"`
	Content     string   `bson:"content" json:"content"`
	WordCount   int      `bson:"word_count" json:"word_count"`
	ImageURLs   []string `bson:"image_urls,omitempty" json:"image_urls,omitempty"`
}

// PptxMetadata carries presentation-level properties.
type PptxMetadata struct {
	Title       string `bson:"title,omitempty" json:"title,omitempty"`
	Author      string `bson:"author,omitempty" json:"author,omitempty"`
	TotalSlides int    `bson:"total_slides" json:"total_slides"`
	SlideWidth  int    `bson:"slide_width,omitempty" json:"slide_width,omitempty"`
	SlideHeight int    `bson:"slide_height,omitempty" json:"slide_height,omitempty"`
}

// IngestionJob is the immutable payload of one ingestion task.
type IngestionJob struct {
	DocumentID        string `json:"document_id"`
	UserID            string `json:"user_id"`
	EncryptedFilename string `json:"encrypted_filename"`
	MimeType          string `json:"mime_type"`
	FileSizeBytes     int64  `json:"file_size_bytes"`
}

// ExtractionResult is the Text Extractor output. It is consumed by the
// metadata writer and the chunker and never persisted wholesale.
type ExtractionResult struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	PageCount  *int     `json:"page_count,omitempty"`
	WordCount  *int     `json:"word_count,omitempty"`
	SheetCount *int     `json:"sheet_count,omitempty"`
}

// Chunk is an overlapping slice of extracted text. StartChar/EndChar span the
// fresh (non-overlap) portion in the source text; the first OverlapChars bytes
// of Content were carried over from the previous chunk.
type Chunk struct {
	Index        int    `json:"chunk_index"`
	Content      string `json:"content"`
	StartChar    int    `json:"start_char"`
	EndChar      int    `json:"end_char"`
	OverlapChars int    `json:"overlap_chars"`
}

// ChunkEmbedding is a chunk that passed embedding validation.
type ChunkEmbedding struct {
	Index     int       `bson:"chunk_index" json:"chunk_index"`
	Content   string    `bson:"content" json:"content"`
	Embedding []float32 `bson:"embedding" json:"embedding"`
	StartChar int       `bson:"start_char" json:"start_char"`
	EndChar   int       `bson:"end_char" json:"end_char"`
}

// ProgressRecord is the short-lived snapshot written on every stage
// transition. Last writer wins; it is not an audit log.
type ProgressRecord struct {
	Progress  int       `json:"progress"` // 0..100
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
