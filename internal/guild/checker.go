package guild

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hitoshi/greetbot/internal/model"
)

// Checker は管理者権限の判定を行う。結果はキャッシュしない。
type Checker struct {
	dir Directory
}

// NewChecker はCheckerを生成する。
func NewChecker(dir Directory) *Checker {
	return &Checker{dir: dir}
}

// IsAdministrator はユーザーが指定ギルドの管理者かどうかを判定する。
// ギルドが解決できない場合はGUILD_NOT_FOUND、メンバーでない場合はMEMBER_NOT_FOUNDを返す。
func (c *Checker) IsAdministrator(ctx context.Context, guildID string, userID uint64) (bool, error) {
	g, err := c.dir.Guild(ctx, guildID)
	if errors.Is(err, ErrNotFound) {
		return false, model.NewGuildNotFoundError(guildID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve guild: %w", err)
	}

	m, err := c.dir.Member(ctx, guildID, strconv.FormatUint(userID, 10))
	if errors.Is(err, ErrNotFound) {
		return false, model.NewMemberNotFoundError()
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve member: %w", err)
	}

	return HasAdministratorStanding(*g, *m), nil
}
