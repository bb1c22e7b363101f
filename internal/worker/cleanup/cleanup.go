// Package cleanup は孤児画像ファイルの定期削除ジョブを提供する。
//
// 品目の挿入失敗やプロセス停止のタイミングによっては、どの品目からも
// 参照されない画像ファイルがアップロードディレクトリに残ることがある。
// このジョブは参照されない一定時間経過後のファイルを削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/secondchance/internal/item"
	"github.com/hitoshi/secondchance/internal/model"
)

// ImageLister は画像ファイルの列挙と削除のインターフェース。
// item.ImageStoreの部分集合として定義する。
type ImageLister interface {
	List() ([]item.ImageFileInfo, error)
	Remove(name string) error
}

// ItemLister は品目の列挙インターフェース。
type ItemLister interface {
	List(ctx context.Context) ([]model.Item, error)
}

// CleanupJob は孤児画像の削除ジョブ。
type CleanupJob struct {
	images ImageLister
	items  ItemLister
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewCleanupJob はCleanupJobを生成する。
// ttlは「最終更新からこの時間を超えた未参照ファイルのみ削除する」猶予期間。
// アップロード直後でまだ品目が挿入されていないファイルを消さないための余裕。
func NewCleanupJob(images ImageLister, items ItemLister, logger *slog.Logger, ttl time.Duration) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		images: images,
		items:  items,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Run は孤児画像の削除を1回実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	items, err := j.items.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	referenced := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Image != "" {
			referenced[it.Image] = struct{}{}
		}
	}

	files, err := j.images.List()
	if err != nil {
		return fmt.Errorf("failed to list image files: %w", err)
	}

	cutoff := j.now().Add(-j.ttl)
	removed := 0

	for _, f := range files {
		if _, ok := referenced[f.Name]; ok {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}

		if err := j.images.Remove(f.Name); err != nil {
			j.logger.Warn("failed to remove orphaned image",
				slog.String("file", f.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("orphaned images removed",
			slog.Int("count", removed),
		)
	}

	return nil
}
