package telegram

// Update is the inbound webhook payload. Only the fields the intake flow
// reads are modeled.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type Message struct {
	MessageID int64      `json:"message_id"`
	From      *User      `json:"from"`
	Chat      Chat       `json:"chat"`
	Text      string     `json:"text"`
	Contact   *Contact   `json:"contact"`
	Location  *Location  `json:"location"`
	Photo     []PhotoSize `json:"photo"`
	Document  *Document  `json:"document"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type PhotoSize struct {
	FileID string `json:"file_id"`
}

type Document struct {
	FileID string `json:"file_id"`
}
