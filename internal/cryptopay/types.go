package cryptopay

// Статусы инвойса Crypto Pay.
const (
	InvoiceActive  = "active"
	InvoicePaid    = "paid"
	InvoiceExpired = "expired"
)

// Invoice описывает инвойс Crypto Pay.
type Invoice struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	PayURL    string `json:"pay_url"`
	BotPayURL string `json:"bot_invoice_url"`
	PaidAt    string `json:"paid_at"`
}

// ExchangeRate описывает курс пары валют из getExchangeRates.
type ExchangeRate struct {
	IsValid bool   `json:"is_valid"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Rate    string `json:"rate"`
}

// App описывает приложение Crypto Pay из getMe.
type App struct {
	AppID   int64  `json:"app_id"`
	Name    string `json:"name"`
	BotName string `json:"payment_processing_bot_username"`
}

// apiResponse — общий конверт ответа Crypto Pay API.
type apiResponse[T any] struct {
	Ok     bool `json:"ok"`
	Result T    `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

type createInvoiceRequest struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

type invoicesResult struct {
	Items []Invoice `json:"items"`
}
