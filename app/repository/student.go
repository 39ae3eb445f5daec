package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

const studentColumns = `id, first_name, last_name, email, phone, chat_id, default_fee, default_currency`

// StudentRepository reads the student records owned by the school application.
type StudentRepository struct {
	db DBTX
}

func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) FindByID(ctx context.Context, id uint64) (*entity.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ? LIMIT 1`

	student := &entity.Student{}
	if err := scanStudent(r.db.QueryRowContext(ctx, query, id), student); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return student, nil
}

// FindByChatID returns at most limit students sharing the chat identifier.
func (r *StudentRepository) FindByChatID(ctx context.Context, chatID string, limit int32) ([]*entity.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE chat_id = ? ORDER BY id ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := make([]*entity.Student, 0)
	for rows.Next() {
		item := &entity.Student{}
		if err := scanStudent(rows, item); err != nil {
			return nil, err
		}
		students = append(students, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return students, nil
}

func scanStudent(scan rowScanner, student *entity.Student) error {
	var email sql.NullString
	var phone sql.NullString
	var chatID sql.NullString
	var defaultFee decimal.NullDecimal
	var defaultCurrency sql.NullString

	err := scan.Scan(
		&student.ID,
		&student.FirstName,
		&student.LastName,
		&email,
		&phone,
		&chatID,
		&defaultFee,
		&defaultCurrency,
	)
	if err != nil {
		return err
	}

	student.Email = stringPtrFromNull(email)
	student.Phone = stringPtrFromNull(phone)
	student.ChatID = stringPtrFromNull(chatID)
	student.DefaultCurrency = stringPtrFromNull(defaultCurrency)
	if defaultFee.Valid {
		fee := defaultFee.Decimal
		student.DefaultFee = &fee
	}

	return nil
}
