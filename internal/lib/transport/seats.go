package transport

// SeatClass is the seat position booked for a trip
type SeatClass string

const (
	SeatWindow SeatClass = "window"
	SeatMiddle SeatClass = "middle"
	SeatAisle  SeatClass = "aisle"
	SeatNone   SeatClass = "none"
)

var seatLabels = map[SeatClass]string{
	SeatWindow: "Window",
	SeatMiddle: "Middle",
	SeatAisle:  "Aisle",
	SeatNone:   "None/Other",
}

// Label returns the display label, or "" for unknown classes
func (s SeatClass) Label() string {
	return seatLabels[s]
}

// Valid reports whether s is a known seat class. Empty is allowed and means unset.
func (s SeatClass) Valid() bool {
	if s == "" {
		return true
	}
	_, ok := seatLabels[s]
	return ok
}

// Currency is a supported cost currency
type Currency struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// DefaultCurrency is preselected for new trips
const DefaultCurrency = "EUR"

var currencies = []Currency{
	{Code: "EUR", Label: "Euro"},
	{Code: "TWD", Label: "New Taiwan Dollar"},
	{Code: "USD", Label: "US Dollar"},
	{Code: "GBP", Label: "Pound Sterling"},
	{Code: "CHF", Label: "Swiss Franc"},
	{Code: "MAD", Label: "Moroccan Dirham"},
	{Code: "SEK", Label: "Swedish Krona"},
	{Code: "NOK", Label: "Norwegian Krone"},
	{Code: "DKK", Label: "Danish Krone"},
	{Code: "ISK", Label: "Icelandic Krona"},
	{Code: "CZK", Label: "Czech Koruna"},
	{Code: "HUF", Label: "Hungarian Forint"},
	{Code: "PLN", Label: "Polish Zloty"},
	{Code: "RON", Label: "Romanian Leu"},
	{Code: "BGN", Label: "Bulgarian Lev"},
	{Code: "TRY", Label: "Turkish Lira"},
	{Code: "RSD", Label: "Serbian Dinar"},
	{Code: "BAM", Label: "Convertible Mark"},
	{Code: "ALL", Label: "Albanian Lek"},
	{Code: "MKD", Label: "Macedonian Denar"},
	{Code: "UAH", Label: "Ukrainian Hryvnia"},
	{Code: "JPY", Label: "Japanese Yen"},
	{Code: "KRW", Label: "South Korean Won"},
	{Code: "CNY", Label: "Chinese Yuan"},
	{Code: "AUD", Label: "Australian Dollar"},
	{Code: "CAD", Label: "Canadian Dollar"},
}

// Currencies returns a copy of the supported currency list
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

// IsCurrency reports whether code is in the supported list
func IsCurrency(code string) bool {
	for _, c := range currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}
