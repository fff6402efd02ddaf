package database

import (
	"context"
	"strings"

	"blocklist/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const blocklistInsertBatchSize = 500

// BlocklistRepository reads and appends blocklist entries. Every call holds exactly one
// lease for its whole duration and returns classified errors only.
type BlocklistRepository struct {
	pool *Pool
}

func NewBlocklistRepository(pool *Pool) *BlocklistRepository {
	return &BlocklistRepository{pool: pool}
}

// List renders the stored networks newest first, one per line. A nil filter lists both
// versions. An empty table yields "".
func (r *BlocklistRepository) List(ctx context.Context, filter *domain.IPVersion) (string, error) {
	var ips []string
	err := r.pool.WithLease(ctx, func(tx *gorm.DB) error {
		return filtered(tx.Model(&domain.BlocklistEntry{}), filter).
			Order("id DESC").
			Pluck("ip", &ips).Error
	})
	if err != nil {
		return "", err
	}
	return strings.Join(ips, "\n"), nil
}

// entries returns the full rows behind List, in the same order.
func (r *BlocklistRepository) entries(ctx context.Context, filter *domain.IPVersion) ([]domain.BlocklistEntry, error) {
	var entries []domain.BlocklistEntry
	err := r.pool.WithLease(ctx, func(tx *gorm.DB) error {
		return filtered(tx, filter).Order("id DESC").Find(&entries).Error
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Add inserts a single entry. An entry for the same network already present is reported
// as a unique violation.
func (r *BlocklistRepository) Add(ctx context.Context, entry domain.NewEntry) error {
	record := entry.Record()
	return r.pool.WithLease(ctx, func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
}

// Import inserts entries in batches, skipping networks that already exist or repeat in
// the input. It returns how many rows were actually inserted.
func (r *BlocklistRepository) Import(ctx context.Context, entries []domain.NewEntry) (int, error) {
	records := dedupeRecords(entries)
	if len(records) == 0 {
		return 0, nil
	}

	var inserted int64
	err := r.pool.WithLease(ctx, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ip"}},
				DoNothing: true,
			}).CreateInBatches(&records, blocklistInsertBatchSize)
			if res.Error != nil {
				return res.Error
			}
			inserted = res.RowsAffected
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return int(inserted), nil
}

func (r *BlocklistRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.WithLease(ctx, func(tx *gorm.DB) error {
		return tx.Model(&domain.BlocklistEntry{}).Count(&count).Error
	})
	return count, err
}

func filtered(tx *gorm.DB, filter *domain.IPVersion) *gorm.DB {
	if filter == nil {
		return tx
	}
	return tx.Where("version = ?", *filter)
}

func dedupeRecords(entries []domain.NewEntry) []domain.BlocklistEntry {
	seen := make(map[string]struct{}, len(entries))
	records := make([]domain.BlocklistEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IP.IsValid() {
			continue
		}
		record := entry.Record()
		if _, dup := seen[record.IP]; dup {
			continue
		}
		seen[record.IP] = struct{}{}
		records = append(records, record)
	}
	return records
}
