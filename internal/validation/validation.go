// Package validation содержит проверки входных данных магазина.
package validation

import "strings"

// IsValidQty проверяет количество товара в позиции заказа: от 1 до 10 штук.
func IsValidQty(qty int) bool {
	return qty >= 1 && qty <= 10
}

// IsValidPhone проверяет телефон получателя: десять цифр,
// допускается префикс +91.
func IsValidPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+91")
	if len(digits) != 10 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsValidVPA проверяет платёжный адрес UPI вида handle@bank.
func IsValidVPA(vpa string) bool {
	at := strings.IndexByte(vpa, '@')
	if at < 1 || at == len(vpa)-1 {
		return false
	}
	if strings.Count(vpa, "@") != 1 {
		return false
	}
	for _, r := range vpa {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_' || r == '@':
		default:
			return false
		}
	}
	return true
}
