package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

// UploadDocumentUseCase creates the document record, stores the bytes and
// triggers the extraction pipeline exactly once.
type UploadDocumentUseCase struct {
	docs    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewUploadDocumentUseCase(docs ports.DocumentRepository, storage ports.ObjectStorage, queue ports.MessageQueue) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{docs: docs, storage: storage, queue: queue}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, ownerID, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("empty upload body"))
	}

	id := uuid.NewString()
	key := fmt.Sprintf("%s/%s", ownerID, id)
	hash := sha256.Sum256(data)
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		StoragePath: key,
		MimeType:    mimeType,
		ByteSize:    int64(len(data)),
		ContentHash: hex.EncodeToString(hash[:]),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishExtractionRequested(ctx, ports.ExtractionRequest{DocumentID: doc.ID}); err != nil {
		return nil, fmt.Errorf("publish extraction request: %w", err)
	}
	return doc, nil
}
