package superprompt

import (
	"context"
	"errors"
	"fmt"

	"ki2go/internal/common"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/gorm"
)

// appendHistory 在事务内追加一条版本历史
func appendHistory(tx *gorm.DB, superpromptID string, version int, superprompt, changedBy, description string) error {
	entry := &HistoryEntry{
		ID:                uuid.New().String(),
		SuperpromptID:     superpromptID,
		Version:           version,
		Superprompt:       superprompt,
		ChangedBy:         changedBy,
		ChangeDescription: description,
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("写入版本历史失败: %w", err)
	}
	return nil
}

// ListHistory 查询版本历史，按版本号降序（entry[0] 恒为最新）
// 同版本存在多条快照时只保留最新一条；已删除的 Override 返回空列表。
func (s *Service) ListHistory(ctx context.Context, superpromptID string, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []*HistoryEntry
	err := s.db.WithContext(ctx).
		Where("superprompt_id = ?", superpromptID).
		Order("version DESC, created_at DESC").
		Limit(limit * 2).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询版本历史失败: %w", err)
	}

	deduped := entries[:0]
	lastVersion := -1
	for _, entry := range entries {
		if entry.Version == lastVersion {
			continue
		}
		lastVersion = entry.Version
		deduped = append(deduped, entry)
		if len(deduped) == limit {
			break
		}
	}
	return deduped, nil
}

// DiffVersions 生成两个历史版本之间的统一 diff
func (s *Service) DiffVersions(ctx context.Context, superpromptID string, fromVersion, toVersion int) (string, error) {
	from, err := s.historyEntry(ctx, superpromptID, fromVersion)
	if err != nil {
		return "", err
	}
	to, err := s.historyEntry(ctx, superpromptID, toVersion)
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(from.Superprompt),
		B:        difflib.SplitLines(to.Superprompt),
		FromFile: fmt.Sprintf("v%d", fromVersion),
		ToFile:   fmt.Sprintf("v%d", toVersion),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("生成 diff 失败: %w", err)
	}
	return text, nil
}

// historyEntry 按版本号查询单条历史；同版本多条快照时取最新一条
func (s *Service) historyEntry(ctx context.Context, superpromptID string, version int) (*HistoryEntry, error) {
	var entry HistoryEntry
	err := s.db.WithContext(ctx).
		Where("superprompt_id = ? AND version = ?", superpromptID, version).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewBusinessErrorWithCode(common.CodeHistoryNotFound)
		}
		return nil, fmt.Errorf("查询历史版本失败: %w", err)
	}
	return &entry, nil
}
