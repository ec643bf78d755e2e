package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateKey は一意制約違反を表す。
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrReferencedRowMissing は外部キーの参照先が存在しないことを表す。
	ErrReferencedRowMissing = errors.New("referenced row does not exist")
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// classify はドライバのエラーを既知のセンチネルエラーに対応付ける。
// 該当しない場合はnilを返す。
func classify(err error) error {
	switch {
	case isUniqueViolation(err):
		return ErrDuplicateKey
	case isForeignKeyViolation(err):
		return ErrReferencedRowMissing
	}
	return nil
}
