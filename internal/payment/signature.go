package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature возвращается при несовпадении подписи платёжного уведомления.
var ErrInvalidSignature = errors.New("invalid payment signature")

// CallbackSignature вычисляет HMAC-SHA256 подпись пары "сессия|платёж",
// которой провайдер подтверждает оплату в синхронном callback клиента.
func CallbackSignature(keySecret, sessionRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(sessionRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature проверяет подпись синхронного callback.
// Пустой секрет означает ненастроенный канал: любая подпись отклоняется.
// Сравнение выполняется за константное время.
func VerifyCallbackSignature(keySecret, sessionRef, paymentRef, signature string) bool {
	if keySecret == "" {
		return false
	}
	expected := CallbackSignature(keySecret, sessionRef, paymentRef)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookSignature вычисляет HMAC-SHA256 подпись сырого тела вебхука.
// Для вебхуков используется отдельный секрет: у провайдера нет пользовательской
// сессии, и подпись тела — единственная авторизация канала.
func WebhookSignature(webhookSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature проверяет подпись сырого тела вебхука за константное время.
func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	if webhookSecret == "" {
		return false
	}
	expected := WebhookSignature(webhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
