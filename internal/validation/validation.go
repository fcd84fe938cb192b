// Package validation содержит функции валидации входных данных.
package validation

// IsValidSlug проверяет slug товара: непустая строка из строчных латинских
// букв, цифр и дефисов, не начинающаяся и не заканчивающаяся дефисом.
func IsValidSlug(slug string) bool {
	if slug == "" || slug[0] == '-' || slug[len(slug)-1] == '-' {
		return false
	}

	for i := 0; i < len(slug); i++ {
		c := slug[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
			if slug[i-1] == '-' {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// IsValidPincode проверяет почтовый индекс: ровно шесть цифр.
func IsValidPincode(pincode string) bool {
	return isDigits(pincode, 6)
}

// IsValidPhone проверяет телефонный номер: ровно десять цифр.
func IsValidPhone(phone string) bool {
	return isDigits(phone, 10)
}

func isDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
