// Package reflink реализует генерацию и разбор реферальных ссылок.
//
// ID реферера кодируется в urlsafe base64 без набивки и передается
// в start-параметре с префиксом "ref_".
package reflink

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const prefix = "ref_"

// Generate возвращает реферальную ссылку для пользователя.
func Generate(botUsername string, userID int64) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10)))
	return fmt.Sprintf("https://t.me/%s?start=%s%s", botUsername, prefix, encoded)
}

// ExtractReferrerID извлекает ID реферера из start-параметра.
// Возвращает 0 и false, если параметр не является реферальным.
func ExtractReferrerID(startParam string) (int64, bool) {
	if !strings.HasPrefix(startParam, prefix) {
		return 0, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(startParam, prefix))
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(decoded), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
