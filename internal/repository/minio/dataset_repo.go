package minio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

const versionLen = 12

// DatasetRepo читает снапшот эмбеддингов товаров из MinIO.
type DatasetRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewDatasetRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *DatasetRepo {
	return &DatasetRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// datasetRow — строка JSON Lines объекта с эмбеддингами
type datasetRow struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Category    string    `json:"category"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding"`
}

// Load загружает датасет целиком. Версия берётся из ETag объекта.
func (d *DatasetRepo) Load(ctx context.Context) (*domain.EmbeddingDataset, error) {
	obj, err := d.mc.GetObject(ctx, d.cfg.EmbeddingsBucket, d.cfg.EmbeddingsObject, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classifyMinioErr(err))
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classifyMinioErr(err))
	}

	version := datasetVersion(info.ETag)
	if version == "" {
		version = fmt.Sprintf("%d", info.LastModified.Unix())
	}

	ds, err := DecodeDataset(obj, version)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ds, nil
}

// DecodeDataset разбирает поток JSON Lines в датасет.
// Пустой поток, строка без product_id или embedding и разная размерность строк дают ErrDataUnavailable.
func DecodeDataset(r io.Reader, version string) (*domain.EmbeddingDataset, error) {
	dec := json.NewDecoder(r)

	var (
		rows []domain.ProductEmbedding
		dim  int
	)
	for line := 1; ; line++ {
		var row datasetRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("row %d: %w: %w", line, e.ErrDataUnavailable, err)
		}

		if strings.TrimSpace(row.ProductID) == "" {
			return nil, fmt.Errorf("row %d has no product_id: %w", line, e.ErrDataUnavailable)
		}

		if len(row.Embedding) == 0 {
			return nil, fmt.Errorf("row %d (%s) has no embedding: %w", line, row.ProductID, e.ErrDataUnavailable)
		}

		if dim == 0 {
			dim = len(row.Embedding)
		} else if len(row.Embedding) != dim {
			return nil, fmt.Errorf("row %d: %w: %w (want %d, got %d)",
				line, e.ErrDataUnavailable, e.ErrDimensionMismatch, dim, len(row.Embedding))
		}

		rows = append(rows, domain.ProductEmbedding{
			ProductID: row.ProductID,
			Vector:    row.Embedding,
			ProductMeta: domain.ProductMeta{
				ProductName: row.ProductName,
				Category:    row.Category,
				Text:        row.Text,
			},
		})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("empty dataset: %w", e.ErrDataUnavailable)
	}

	return domain.NewEmbeddingDataset(version, dim, rows), nil
}

// datasetVersion превращает ETag в короткий идентификатор из букв и цифр,
// пригодный для имени коллекции.
func datasetVersion(etag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(etag) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == versionLen {
				break
			}
		}
	}
	return b.String()
}

func classifyMinioErr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %w", e.ErrDataUnavailable, err)
	default:
		return err
	}
}
