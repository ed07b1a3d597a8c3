package repository

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gorm.io/gorm"

	"vidyai-rag/internal/model"
)

// ScoredChunk is a search hit; Distance is cosine distance (0 = identical direction).
type ScoredChunk struct {
	model.TextChunk
	Distance float64
}

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CountByChapter(ctx context.Context, chapterID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TextChunk{}).
		Where("chapter_id = ?", chapterID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}

func (r *ChunkRepository) CountEmbeddedByChapter(ctx context.Context, chapterID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TextChunk{}).
		Where("chapter_id = ? AND embedding IS NOT NULL", chapterID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count embedded chunks failed: %w", err)
	}
	return n, nil
}

func (r *ChunkRepository) Create(ctx context.Context, chunk *model.TextChunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByChapter(ctx context.Context, chapterID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("chapter_id = ?", chapterID).Delete(&model.TextChunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks by chapter failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReplaceForChapter deletes the chapter's chunks and inserts the new set in one transaction.
func (r *ChunkRepository) ReplaceForChapter(ctx context.Context, chapterID uint, chunks []model.TextChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&model.TextChunk{}).Error; err != nil {
			return fmt.Errorf("delete chunks by chapter failed: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		for i := range chunks {
			chunks[i].ChapterID = chapterID
		}
		if err := tx.CreateInBatches(&chunks, 200).Error; err != nil {
			return fmt.Errorf("create chunks batch failed: %w", err)
		}
		return nil
	})
}

func (r *ChunkRepository) ListMissingEmbedding(ctx context.Context, chapterID uint) ([]model.TextChunk, error) {
	var chunks []model.TextChunk
	if err := r.db.WithContext(ctx).
		Where("chapter_id = ? AND embedding IS NULL", chapterID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks missing embedding failed: %w", err)
	}
	return chunks, nil
}

// SetEmbeddings attaches vectors in one transaction. Rows that already carry an
// embedding are left as they are; the number of rows actually updated is returned.
func (r *ChunkRepository) SetEmbeddings(ctx context.Context, vectors map[uint][]float32) (int64, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	ids := make([]uint, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			vec := vectors[id]
			if len(vec) == 0 {
				return fmt.Errorf("empty embedding for chunk %d", id)
			}
			res := tx.Model(&model.TextChunk{}).
				Where("id = ? AND embedding IS NULL", id).
				Update("embedding", model.Vector(vec))
			if res.Error != nil {
				return fmt.Errorf("update chunk embedding failed: %w", res.Error)
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// SearchSimilar returns up to k embedded chunks of the chapter ordered by ascending
// cosine distance to query, ties broken by chunk_index.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, chapterID uint, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	var chunks []model.TextChunk
	if err := r.db.WithContext(ctx).
		Where("chapter_id = ? AND embedding IS NOT NULL", chapterID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list embedded chunks failed: %w", err)
	}

	q := toFloat64(query)
	scored := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, ScoredChunk{TextChunk: c, Distance: cosineDistance(q, toFloat64(c.Embedding))})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].ChunkIndex < scored[j].ChunkIndex
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *ChunkRepository) ChapterStats(ctx context.Context, chapterID uint) (total, embedded int64, err error) {
	if total, err = r.CountByChapter(ctx, chapterID); err != nil {
		return 0, 0, err
	}
	if embedded, err = r.CountEmbeddedByChapter(ctx, chapterID); err != nil {
		return 0, 0, err
	}
	return total, embedded, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// cosineDistance is 1 - cos(a, b). Mismatched or zero vectors are treated as unrelated.
func cosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}
