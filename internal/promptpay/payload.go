// Package promptpay кодирует платёжную нагрузку PromptPay QR
// в формате EMVCo TLV (Thai QR Payment Standard).
package promptpay

import (
	"fmt"
	"strings"
)

const (
	idPayloadFormat        = "00"
	idPOIMethod            = "01"
	idMerchantInfo         = "29"
	idCountryCode          = "58"
	idCurrency             = "53"
	idAmount               = "54"
	idCRC                  = "63"
	merchantInfoAID        = "00"
	merchantInfoPhone      = "01"
	merchantInfoNationalID = "02"
	merchantInfoEWallet    = "03"

	aidPromptPay = "A000000677010111"
	currencyTHB  = "764"

	poiStatic  = "11" // Многоразовый QR, сумма не зашита
	poiDynamic = "12" // Одноразовый QR с зашитой суммой
)

// BuildPayload кодирует цель платежа (телефон, национальный ID или
// e-wallet) и сумму в строку для QR кода. Нулевая сумма даёт статический
// QR без суммы
func BuildPayload(target string, amount float64) (string, error) {
	digits := sanitize(target)
	if len(digits) < 9 {
		return "", fmt.Errorf("promptpay target too short: %q", target)
	}
	if amount < 0 {
		return "", fmt.Errorf("negative amount: %v", amount)
	}

	var account string
	switch {
	case len(digits) >= 15:
		account = tlv(merchantInfoEWallet, digits)
	case len(digits) >= 13:
		account = tlv(merchantInfoNationalID, digits)
	default:
		// Телефон: код страны 0066 вместо ведущего нуля
		account = tlv(merchantInfoPhone, "0066"+strings.TrimLeft(digits, "0"))
	}

	poi := poiStatic
	if amount > 0 {
		poi = poiDynamic
	}

	var b strings.Builder
	b.WriteString(tlv(idPayloadFormat, "01"))
	b.WriteString(tlv(idPOIMethod, poi))
	b.WriteString(tlv(idMerchantInfo, tlv(merchantInfoAID, aidPromptPay)+account))
	b.WriteString(tlv(idCountryCode, "TH"))
	b.WriteString(tlv(idCurrency, currencyTHB))
	if amount > 0 {
		b.WriteString(tlv(idAmount, fmt.Sprintf("%.2f", amount)))
	}

	// CRC считается по всей строке, включая тег и длину самого CRC
	b.WriteString(idCRC + "04")
	payload := b.String()
	return payload + fmt.Sprintf("%04X", crc16(payload)), nil
}

// tlv кодирует поле tag-length-value с двузначной длиной
func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// crc16 считает CRC-16/CCITT-FALSE (полином 0x1021, init 0xFFFF)
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// sanitize оставляет только цифры
func sanitize(target string) string {
	var b strings.Builder
	for _, r := range target {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
