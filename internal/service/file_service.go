package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/extract"
	"github.com/clarity-app/clarity/internal/filestore"
	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
	"github.com/clarity-app/clarity/internal/repo"
)

const fileObjectPrefix = "files/"

// UploadResult reports both halves of an upload: the stored file and the
// card that fronts it in streams.
type UploadResult struct {
	File      *model.File `json:"file"`
	Card      *model.Card `json:"card"`
	JobID     string      `json:"job_id,omitempty"`
	Processed bool        `json:"processed"`
}

// FileService handles document uploads. Small files are text-extracted
// inline so the card is usable immediately; larger ones go through the job
// queue.
type FileService struct {
	brains         *repo.BrainRepo
	files          *repo.FileRepo
	cardSvc        *CardService
	store          filestore.Store
	queue          JobEnqueuer
	maxUploadBytes int64
	syncBytes      int64
}

func NewFileService(brains *repo.BrainRepo, files *repo.FileRepo, cardSvc *CardService,
	store filestore.Store, queue JobEnqueuer, maxUploadBytes, syncBytes int64) *FileService {
	return &FileService{
		brains:         brains,
		files:          files,
		cardSvc:        cardSvc,
		store:          store,
		queue:          queue,
		maxUploadBytes: maxUploadBytes,
		syncBytes:      syncBytes,
	}
}

// Upload validates and stores the document, creates its file card, and
// either extracts text inline (small files) or enqueues a processing job.
func (s *FileService) Upload(ctx context.Context, userID, brainID, name string, size int64, r io.Reader) (*UploadResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.Validation("name", "file name is required")
	}
	if !extract.SupportedExt(name) {
		return nil, appErr.ErrFileType
	}
	if size <= 0 || size > s.maxUploadBytes {
		return nil, appErr.ErrFileTooLarge
	}
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	if err := s.cardSvc.checkQuota(ctx, brainID, size); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, appErr.ErrFileTooLarge
	}

	now := timeutil.NowUnix()
	file := &model.File{
		ID:          newID(),
		BrainID:     brainID,
		Name:        name,
		ContentType: contentTypeForName(name),
		FileKey:     fileObjectPrefix + newID(),
		Size:        int64(len(data)),
		Status:      model.FileStatusUploaded,
		Ctime:       now,
		Mtime:       now,
	}
	if err := filestore.SaveBytes(ctx, s.store, file.FileKey, data); err != nil {
		return nil, err
	}
	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.store.Delete(ctx, file.FileKey); delErr != nil {
			logutil.GetLogger(ctx).Warn("orphaned upload cleanup failed", zap.String("key", file.FileKey), zap.Error(delErr))
		}
		return nil, err
	}
	if err := s.brains.AddStorageUsed(ctx, brainID, file.Size, now); err != nil {
		logutil.GetLogger(ctx).Warn("storage accounting update failed", zap.String("brain_id", brainID), zap.Error(err))
	}

	card, err := s.cardSvc.CreateFileCard(ctx, userID, brainID, name, file.ID)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{File: file, Card: card}
	if file.Size <= s.syncBytes {
		if err := s.process(ctx, userID, file, card.ID, data); err != nil {
			logutil.GetLogger(ctx).Warn("inline file processing failed",
				zap.String("file_id", file.ID), zap.Error(err))
		} else {
			result.Processed = true
		}
		return result, nil
	}

	jobID, err := s.queue.Enqueue(ctx, model.JobTypeFileProcessing, map[string]interface{}{
		"file_id": file.ID,
		"card_id": card.ID,
	}, userID, brainID, 0)
	if err != nil {
		logutil.GetLogger(ctx).Warn("enqueue file processing failed", zap.String("file_id", file.ID), zap.Error(err))
		return result, nil
	}
	result.JobID = jobID
	return result, nil
}

// HandleProcessing is the queue handler for FILE_PROCESSING jobs.
func (s *FileService) HandleProcessing(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
	fileID, _ := job.InputData["file_id"].(string)
	cardID, _ := job.InputData["card_id"].(string)
	if fileID == "" || cardID == "" {
		return nil, fmt.Errorf("file processing job missing file_id or card_id")
	}
	file, err := s.files.GetByID(ctx, job.BrainID, fileID)
	if err != nil {
		return nil, err
	}
	data, err := filestore.ReadBytes(ctx, s.store, file.FileKey)
	if err != nil {
		s.markFailed(ctx, fileID)
		return nil, err
	}
	if err := s.process(ctx, job.UserID, file, cardID, data); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"file_id":   fileID,
		"card_id":   cardID,
		"extracted": true,
	}, nil
}

// process extracts text from the raw document and writes it as the card's
// body, then marks the file processed.
func (s *FileService) process(ctx context.Context, userID string, file *model.File, cardID string, data []byte) error {
	text, err := extract.Text(file.Name, data)
	if err != nil {
		s.markFailed(ctx, file.ID)
		return err
	}
	if _, err := s.cardSvc.UpdateContent(ctx, userID, file.BrainID, cardID, text); err != nil {
		s.markFailed(ctx, file.ID)
		return err
	}
	if err := s.files.UpdateStatus(ctx, file.ID, model.FileStatusProcessed, timeutil.NowUnix()); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("file processed",
		zap.String("file_id", file.ID),
		zap.String("card_id", cardID),
		zap.Int("text_bytes", len(text)),
	)
	return nil
}

func (s *FileService) markFailed(ctx context.Context, fileID string) {
	if err := s.files.UpdateStatus(ctx, fileID, model.FileStatusFailed, timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Warn("mark file failed errored", zap.String("file_id", fileID), zap.Error(err))
	}
}

func (s *FileService) Get(ctx context.Context, userID, brainID, fileID string) (*model.File, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	return s.files.GetByID(ctx, brainID, fileID)
}

func (s *FileService) List(ctx context.Context, userID, brainID string) ([]model.File, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	return s.files.ListByBrain(ctx, brainID)
}

// Download opens the raw stored document.
func (s *FileService) Download(ctx context.Context, userID, brainID, fileID string) (*model.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, userID, brainID, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, file.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return file, rc, nil
}

// Delete removes the stored object and the file row. The fronting card
// keeps its extracted content and is deleted separately.
func (s *FileService) Delete(ctx context.Context, userID, brainID, fileID string) error {
	file, err := s.Get(ctx, userID, brainID, fileID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, file.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("delete file object failed", zap.String("key", file.FileKey), zap.Error(err))
	}
	if err := s.files.Delete(ctx, brainID, fileID); err != nil {
		return err
	}
	if file.Size > 0 {
		if err := s.brains.AddStorageUsed(ctx, brainID, -file.Size, timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Warn("storage accounting update failed", zap.String("brain_id", brainID), zap.Error(err))
		}
	}
	return nil
}

func contentTypeForName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return "text/markdown"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".epub"):
		return "application/epub+zip"
	default:
		return "application/octet-stream"
	}
}
