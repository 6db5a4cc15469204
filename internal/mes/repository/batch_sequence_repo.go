package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchSequenceRepository 数据库原子自增的每日流水号
type BatchSequenceRepository struct {
	db *gorm.DB
}

func NewBatchSequenceRepository(db *gorm.DB) *BatchSequenceRepository {
	return &BatchSequenceRepository{db: db}
}

// Next 取下一个流水号，结果不小于 floor+1
// 单条 upsert 语句完成读和写，并发调用拿到的值互不相同
func (r *BatchSequenceRepository) Next(ctx context.Context, dayKey string, floor int) (int, error) {
	seq := entity.BatchSequence{
		DayKey:    dayKey,
		LastSeq:   floor + 1,
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "day_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_seq": gorm.Expr(
					"CASE WHEN mes_batch_sequences.last_seq >= ? THEN mes_batch_sequences.last_seq + 1 ELSE ? END",
					floor, floor+1),
				"updated_at": seq.UpdatedAt,
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "last_seq"}}},
	).Create(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq.LastSeq, nil
}
