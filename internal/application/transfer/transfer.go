package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/metrics"
	"github.com/hilthontt/roomdrop/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultUploadTimeout = 5 * time.Minute

type TransferUseCase interface {
	CreateRoom(ctx context.Context) (domain.RoomCode, error)
	Upload(ctx context.Context, files []domain.Upload) (domain.RoomCode, error)
	UploadToRoom(ctx context.Context, rawCode string, files []domain.Upload) (domain.RoomCode, error)
	ListRoom(ctx context.Context, rawCode string) ([]domain.FileEntry, error)
	PresignUpload(ctx context.Context, rawCode, filename string) (*PresignedUpload, error)
}

type PresignedUpload struct {
	Key          string
	URL          string
	MaxSizeBytes int64
}

type Options struct {
	RoomPrefix    string
	UploadTimeout time.Duration
	Clock         domain.Clock
	Generate      func() (domain.RoomCode, error)
	Notifier      domain.RoomNotifier
	Metrics       *metrics.Metrics
}

type transferUseCase struct {
	registry      domain.RoomRegistry
	store         domain.ContentStore
	notifier      domain.RoomNotifier
	logger        logging.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	roomPrefix    string
	uploadTimeout time.Duration
	now           domain.Clock
	generate      func() (domain.RoomCode, error)
}

func NewTransferUseCase(
	registry domain.RoomRegistry,
	store domain.ContentStore,
	logger logging.Logger,
	opts Options,
) TransferUseCase {
	uc := &transferUseCase{
		registry:      registry,
		store:         store,
		notifier:      opts.Notifier,
		logger:        logger,
		metrics:       opts.Metrics,
		tracer:        tracing.GetTracer("roomdrop/transfer"),
		roomPrefix:    opts.RoomPrefix,
		uploadTimeout: opts.UploadTimeout,
		now:           opts.Clock,
		generate:      opts.Generate,
	}

	if uc.roomPrefix == "" {
		uc.roomPrefix = domain.DefaultRoomPrefix
	}
	if uc.uploadTimeout <= 0 {
		uc.uploadTimeout = defaultUploadTimeout
	}
	if uc.now == nil {
		uc.now = time.Now
	}
	if uc.generate == nil {
		uc.generate = domain.GenerateRoomCode
	}
	if uc.metrics == nil {
		uc.metrics = metrics.New()
	}
	if uc.logger == nil {
		uc.logger = logging.NewNopLogger()
	}

	return uc
}

// CreateRoom hands out a code ahead of the upload. The reservation lapses
// after domain.RoomTTL if nothing is uploaded into it.
func (uc *transferUseCase) CreateRoom(ctx context.Context) (domain.RoomCode, error) {
	ctx, span := uc.tracer.Start(ctx, "transfer.CreateRoom")
	defer span.End()

	code, err := uc.allocateCode(ctx)
	if err != nil {
		tracing.Fail(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("room.code", code.String()))
	return code, nil
}

func (uc *transferUseCase) Upload(ctx context.Context, files []domain.Upload) (domain.RoomCode, error) {
	ctx, span := uc.tracer.Start(ctx, "transfer.Upload",
		trace.WithAttributes(attribute.Int("upload.files", len(files))))
	defer span.End()

	if len(files) == 0 {
		uc.metrics.UploadFailed("empty")
		return "", domain.ErrEmptyBatch
	}

	code, err := uc.allocateCode(ctx)
	if err != nil {
		uc.metrics.UploadFailed("allocate")
		tracing.Fail(span, err)
		return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	span.SetAttributes(attribute.String("room.code", code.String()))

	if err := uc.fill(ctx, code, files); err != nil {
		// Stored objects stay behind as unreachable garbage; only the code is given back.
		if rerr := uc.registry.Release(context.WithoutCancel(ctx), code); rerr != nil {
			uc.logger.Warn(logging.Internal, logging.Upload, "failed to release room code", map[logging.ExtraKey]any{
				logging.RoomCode:     code.String(),
				logging.ErrorMessage: rerr.Error(),
			})
		}
		tracing.Fail(span, err)
		return "", err
	}

	return code, nil
}

// UploadToRoom fills a code obtained from CreateRoom.
func (uc *transferUseCase) UploadToRoom(ctx context.Context, rawCode string, files []domain.Upload) (domain.RoomCode, error) {
	ctx, span := uc.tracer.Start(ctx, "transfer.UploadToRoom",
		trace.WithAttributes(attribute.Int("upload.files", len(files))))
	defer span.End()

	code, err := domain.ParseRoomCode(rawCode)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("room.code", code.String()))

	if len(files) == 0 {
		uc.metrics.UploadFailed("empty")
		return "", domain.ErrEmptyBatch
	}

	// Cheap early refusal; Commit still decides atomically.
	if _, err := uc.registry.Get(ctx, code); err == nil {
		return "", domain.ErrRoomAlreadyExists
	} else if !errors.Is(err, domain.ErrRoomNotFound) {
		uc.metrics.UploadFailed("registry")
		return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	if err := uc.fill(ctx, code, files); err != nil {
		tracing.Fail(span, err)
		return "", err
	}

	return code, nil
}

// fill stores every file concurrently and commits the room once all of them landed.
func (uc *transferUseCase) fill(ctx context.Context, code domain.RoomCode, files []domain.Upload) error {
	entries, err := uc.storeAll(ctx, code, files)
	if err != nil {
		reason := "store"
		if errors.Is(err, domain.ErrFileTooLarge) {
			reason = "too_large"
		}
		uc.metrics.UploadFailed(reason)
		uc.logger.Error(logging.Storage, logging.Upload, "failed to store upload batch", map[logging.ExtraKey]any{
			logging.RoomCode:     code.String(),
			logging.FileCount:    len(files),
			logging.ErrorMessage: err.Error(),
		})
		if errors.Is(err, domain.ErrFileTooLarge) || errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	room, err := domain.NewRoom(code, entries, uc.now())
	if err != nil {
		return err
	}

	if err := uc.registry.Commit(ctx, room); err != nil {
		uc.metrics.UploadFailed("commit")
		if errors.Is(err, domain.ErrRoomAlreadyExists) || errors.Is(err, domain.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	uc.metrics.RoomCreated()
	uc.logger.Info(logging.Internal, logging.Upload, "room created", map[logging.ExtraKey]any{
		logging.RoomCode:  code.String(),
		logging.FileCount: len(entries),
	})

	if uc.notifier != nil {
		uc.notifier.RoomCreated(ctx, *room)
	}

	return nil
}

func (uc *transferUseCase) storeAll(ctx context.Context, code domain.RoomCode, files []domain.Upload) ([]domain.FileEntry, error) {
	for i, f := range files {
		if f.Name == "" || f.Body == nil {
			return nil, fmt.Errorf("%w: file %d has no name or content", domain.ErrInvalidInput, i)
		}
	}

	entries := make([]domain.FileEntry, len(files))
	batchStart := uc.now()

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		// One millisecond per position keeps keys distinct for same-named files
		// and makes later files in a batch the newer ones.
		uploadedAt := batchStart.Add(time.Duration(i) * time.Millisecond)
		key := domain.EncodeObjectKey(uc.roomPrefix, code, uploadedAt, f.Name)

		g.Go(func() error {
			putCtx, cancel := context.WithTimeout(gctx, uc.uploadTimeout)
			defer cancel()

			started := time.Now()
			obj, err := uc.store.Put(putCtx, key, f.Body, f.Size, f.ContentType)
			if err != nil {
				return fmt.Errorf("store %q: %w", f.Name, err)
			}
			uc.metrics.FileStored(time.Since(started))
			uc.logger.Debug(logging.Storage, logging.Upload, "file stored", map[logging.ExtraKey]any{
				logging.RoomCode:  code.String(),
				logging.ObjectKey: obj.Key,
			})

			entries[i] = domain.FileEntry{
				Name:        domain.SanitizeFilename(f.Name),
				URL:         obj.URL,
				DownloadURL: obj.DownloadURL,
				Key:         obj.Key,
				Size:        obj.Size,
				UploadedAt:  uploadedAt,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// allocateCode loops until the registry accepts a reservation. There is no
// retry cap; only cancellation or a real registry failure ends it.
func (uc *transferUseCase) allocateCode(ctx context.Context) (domain.RoomCode, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := uc.generate()
		if err != nil {
			return "", err
		}

		err = uc.registry.Reserve(ctx, code)
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, domain.ErrRoomAlreadyExists):
			uc.metrics.CodeCollision()
			uc.logger.Debug(logging.Internal, logging.Allocate, "room code collision", map[logging.ExtraKey]any{
				logging.RoomCode: code.String(),
			})
		default:
			uc.logger.Error(logging.Internal, logging.Allocate, "failed to reserve room code", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			return "", fmt.Errorf("reserve room code: %w", err)
		}
	}
}

func (uc *transferUseCase) ListRoom(ctx context.Context, rawCode string) ([]domain.FileEntry, error) {
	ctx, span := uc.tracer.Start(ctx, "transfer.ListRoom")
	defer span.End()

	code, err := domain.ParseRoomCode(rawCode)
	if err != nil {
		uc.metrics.Lookup(metrics.LookupInvalid)
		return nil, err
	}
	span.SetAttributes(attribute.String("room.code", code.String()))

	room, err := uc.registry.Get(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			uc.metrics.Lookup(metrics.LookupNotFound)
			return nil, err
		}
		uc.metrics.Lookup(metrics.LookupError)
		uc.logger.Error(logging.Internal, logging.Retrieval, "failed to read room", map[logging.ExtraKey]any{
			logging.RoomCode:     code.String(),
			logging.ErrorMessage: err.Error(),
		})
		tracing.Fail(span, err)
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	if room.Expired(uc.now()) || len(room.Files) == 0 {
		uc.metrics.Lookup(metrics.LookupNotFound)
		return nil, domain.ErrRoomNotFound
	}

	files := make([]domain.FileEntry, len(room.Files))
	copy(files, room.Files)
	domain.SortNewestFirst(files)

	uc.metrics.Lookup(metrics.LookupFound)
	return files, nil
}

// PresignUpload lets a client put one file straight into the content store
// under the room's prefix. The room materializes in the object-store registry
// as soon as the object exists.
func (uc *transferUseCase) PresignUpload(ctx context.Context, rawCode, filename string) (*PresignedUpload, error) {
	ctx, span := uc.tracer.Start(ctx, "transfer.PresignUpload")
	defer span.End()

	code, err := domain.ParseRoomCode(rawCode)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}

	key := domain.EncodeObjectKey(uc.roomPrefix, code, uc.now(), filename)
	url, err := uc.store.PresignPut(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrPresignUnsupported) {
			return nil, err
		}
		tracing.Fail(span, err)
		return nil, fmt.Errorf("presign upload for room %s: %w", code, err)
	}

	return &PresignedUpload{
		Key:          key,
		URL:          url,
		MaxSizeBytes: domain.MaxFileSize,
	}, nil
}
