package model

// User идентичность клиента, полученная от внешнего провайдера авторизации
// (Telegram, LINE и т.п.). Хранится в сессии на время жизни процесса.
type User struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url,omitempty"`
}
