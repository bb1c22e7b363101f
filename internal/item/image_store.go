package item

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ImageFileInfo は保存済み画像ファイルのメタ情報。
type ImageFileInfo struct {
	Name    string
	ModTime time.Time
}

// ImageStore は品目画像の保存先インターフェース。
type ImageStore interface {
	// Save は画像を保存し、保存時のファイル名を返す。
	// 元のファイル名は衝突回避のためプレフィックスを付けて保存される。
	Save(originalName string, r io.Reader) (string, error)
	// Remove は保存済み画像を削除する。
	Remove(name string) error
	// List は保存済み画像の一覧を返す。
	List() ([]ImageFileInfo, error)
}

// DiskImageStore はローカルディスクを使用したImageStoreの実装。
type DiskImageStore struct {
	dir string
}

// NewDiskImageStore はDiskImageStoreを生成する。
// 保存先ディレクトリが存在しない場合は作成する。
func NewDiskImageStore(dir string) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskImageStore{dir: dir}, nil
}

// Save は画像をUUIDプレフィックス付きファイル名で保存する。
// パストラバーサルを防ぐため元のファイル名はベース名のみを使用する。
func (s *DiskImageStore) Save(originalName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(originalName))

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		// 書き込みに失敗した中途半端なファイルは残さない
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return name, nil
}

// Remove は保存済み画像を削除する。存在しない場合はエラーを返さない。
func (s *DiskImageStore) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}

// List は保存済み画像の一覧を返す。
func (s *DiskImageStore) List() ([]ImageFileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	infos := make([]ImageFileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ImageFileInfo{
			Name:    entry.Name(),
			ModTime: fi.ModTime(),
		})
	}
	return infos, nil
}

// compile-time interface check
var _ ImageStore = (*DiskImageStore)(nil)
