// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// Errors - сообщения об ошибках, сгруппированные по полям запроса.
type Errors map[string]string

// Add добавляет сообщение для поля, если для него ещё нет ошибки.
func (e Errors) Add(field, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}

// Empty сообщает, что ошибок нет.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Fields возвращает имена полей с ошибками.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	return fields
}

// ValidateShipping проверяет адрес доставки. Необязательны только address2 и memo.
func ValidateShipping(addr model.ShippingAddress) Errors {
	errs := Errors{}

	if strings.TrimSpace(addr.RecipientName) == "" {
		errs.Add("recipientName", "수령인 이름을 입력해주세요.")
	}

	switch {
	case strings.TrimSpace(addr.Phone) == "":
		errs.Add("phone", "연락처를 입력해주세요.")
	case !IsValidPhone(addr.Phone):
		errs.Add("phone", "올바른 연락처 형식이 아닙니다.")
	}

	switch {
	case strings.TrimSpace(addr.PostalCode) == "":
		errs.Add("postalCode", "우편번호를 입력해주세요.")
	case !IsValidPostalCode(addr.PostalCode):
		errs.Add("postalCode", "우편번호는 5자리 숫자입니다.")
	}

	if strings.TrimSpace(addr.Address1) == "" {
		errs.Add("address1", "주소를 입력해주세요.")
	}

	return errs
}

// IsValidPhone проверяет номер телефона: цифры и дефисы, от 9 до 11 цифр.
func IsValidPhone(phone string) bool {
	digits := 0
	for _, ch := range strings.TrimSpace(phone) {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case ch == '-':
		default:
			return false
		}
	}
	return digits >= 9 && digits <= 11
}

// IsValidPostalCode проверяет корейский почтовый индекс из пяти цифр.
func IsValidPostalCode(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 5 {
		return false
	}
	for _, ch := range code {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// ValidateCredentials проверяет данные регистрации пользователя.
func ValidateCredentials(email, password, name string) Errors {
	errs := Errors{}
	if !IsValidEmail(email) {
		errs.Add("email", "올바른 이메일 형식이 아닙니다.")
	}
	if len(password) < 8 {
		errs.Add("password", "비밀번호는 8자 이상이어야 합니다.")
	}
	if strings.TrimSpace(name) == "" {
		errs.Add("name", "이름을 입력해주세요.")
	}
	return errs
}
