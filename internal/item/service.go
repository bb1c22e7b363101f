// Package item は品目管理のドメインロジックを提供する。
package item

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hitoshi/secondchance/internal/model"
	"github.com/hitoshi/secondchance/internal/repository"
	"github.com/hitoshi/secondchance/internal/security"
)

// MetricsCollector は品目イベントのメトリクス収集インターフェース。
type MetricsCollector interface {
	RecordItemCreated()
	RecordSearch()
}

// CreateItemInput は品目登録の入力。
type CreateItemInput struct {
	Name        string
	Category    string
	Condition   string
	Description string
	AgeDays     int
}

// UpdateItemInput は品目更新の入力。
// 更新対象はcategory、condition、age_days、descriptionのみ。
type UpdateItemInput struct {
	Category    string
	Condition   string
	AgeDays     int
	Description string
}

// UploadedImage はアップロードされた画像を表す。
type UploadedImage struct {
	Filename string
	Data     io.Reader
}

// Service は品目管理のサービス層。
type Service struct {
	repo      repository.ItemRepository
	sanitizer security.ContentSanitizerService
	images    ImageStore
	metrics   MetricsCollector
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	repo repository.ItemRepository,
	sanitizer security.ContentSanitizerService,
	images ImageStore,
	metrics MetricsCollector,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		images:    images,
		metrics:   metrics,
	}
}

// ListItems は全品目を返す。
func (s *Service) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.repo.List(ctx)
}

// GetItem は指定IDの品目を返す。見つからない場合はItemNotFoundエラー。
func (s *Service) GetItem(ctx context.Context, id int) (*model.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}

// CreateItem は品目を登録する。imageはnilでもよい。
//
// 連番IDは現在の最大ID+1を採番する。採番と挿入は別ステップのため
// 同時登録では衝突しうるが、idのユニークインデックスが重複を拒否する。
// 品目名・説明文は保存前にサニタイズする。
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput, image *UploadedImage) (*model.Item, error) {
	if input.Name == "" {
		return nil, model.NewValidationError("品目名は必須です")
	}

	nextID, err := s.repo.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate item id: %w", err)
	}

	item := &model.Item{
		ID:          nextID,
		Name:        s.sanitizer.Sanitize(input.Name),
		Category:    input.Category,
		Condition:   input.Condition,
		Description: s.sanitizer.Sanitize(input.Description),
		AgeDays:     input.AgeDays,
		AgeYears:    model.AgeYearsFromDays(input.AgeDays),
		CreatedAt:   time.Now(),
	}

	if image != nil {
		stored, err := s.images.Save(image.Filename, image.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		item.Image = stored
	}

	if err := s.repo.Create(ctx, item); err != nil {
		// 画像を先に保存しているため、挿入失敗時は孤児ファイルを掃除する
		if item.Image != "" {
			if rmErr := s.images.Remove(item.Image); rmErr != nil {
				slog.Warn("failed to remove orphaned image",
					slog.String("image", item.Image),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	slog.Info("item created",
		slog.Int("item_id", item.ID),
		slog.String("name", item.Name),
	)
	if s.metrics != nil {
		s.metrics.RecordItemCreated()
	}

	return item, nil
}

// UpdateItem は品目の特定フィールドのみを部分更新する。
// age_yearsはage_daysから再計算する。
func (s *Service) UpdateItem(ctx context.Context, id int, input UpdateItemInput) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch item: %w", err)
	}
	if existing == nil {
		return model.NewItemNotFoundError(id)
	}

	update := model.ItemUpdate{
		Category:    input.Category,
		Condition:   input.Condition,
		AgeDays:     input.AgeDays,
		AgeYears:    model.AgeYearsFromDays(input.AgeDays),
		Description: s.sanitizer.Sanitize(input.Description),
		UpdatedAt:   time.Now(),
	}

	matched, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if !matched {
		return model.NewItemNotFoundError(id)
	}

	return nil
}

// DeleteItem は品目を削除し、紐づく画像ファイルも削除する。
func (s *Service) DeleteItem(ctx context.Context, id int) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch item: %w", err)
	}
	if existing == nil {
		return model.NewItemNotFoundError(id)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if !deleted {
		return model.NewItemNotFoundError(id)
	}

	if existing.Image != "" {
		if err := s.images.Remove(existing.Image); err != nil {
			slog.Warn("failed to remove item image",
				slog.String("image", existing.Image),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// SearchItems は絞り込み条件に一致する品目を返す。
func (s *Service) SearchItems(ctx context.Context, query model.SearchQuery) ([]model.Item, error) {
	items, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSearch()
	}
	return items, nil
}
