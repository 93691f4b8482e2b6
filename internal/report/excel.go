// Пакет report — выгрузка сводки по страйкам и штрафам в Excel.
package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MarJone/NCADbook-sub003/internal/domain/fines"
	"github.com/MarJone/NCADbook-sub003/internal/domain/strikes"
)

type UserSource interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

type StrikeSource interface {
	GetState(ctx context.Context, userID int64) (strikes.State, error)
}

type FineSource interface {
	OwedByUsers(ctx context.Context) (map[int64]fines.Summary, error)
}

type Builder struct {
	users   UserSource
	strikes StrikeSource
	fines   FineSource
	now     func() time.Time
}

func NewBuilder(users UserSource, ss StrikeSource, fs FineSource) *Builder {
	return &Builder{users: users, strikes: ss, fines: fs, now: time.Now}
}

// Penalties собирает по строке на пользователя: страйки, окно
// ограничения, задолженность и флаг блокировки счёта.
func (b *Builder) Penalties(ctx context.Context) ([]byte, error) {
	ids, err := b.users.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	owed, err := b.fines.OwedByUsers(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"user_id",
		"strike_count",
		"standing",
		"blacklist_until",
		"owed_eur",
		"paid_eur",
		"overdue_fines",
		"account_hold",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	now := b.now()
	row := 2
	for _, id := range ids {
		st, err := b.strikes.GetState(ctx, id)
		if err != nil {
			return nil, err
		}
		s := owed[id]

		until := ""
		if st.BlacklistUntil != nil {
			until = st.BlacklistUntil.Format("2006-01-02")
		}
		excelRow := []interface{}{
			id,
			st.StrikeCount,
			string(st.Standing(now)),
			until,
			float64(s.TotalOwedCents) / 100,
			float64(s.TotalPaidCents) / 100,
			s.OverdueCount,
			s.AccountHold,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, err
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename — имя выгрузки с отметкой времени.
func (b *Builder) Filename() string {
	return fmt.Sprintf("penalties_%s.xlsx", b.now().Format("20060102_150405"))
}
