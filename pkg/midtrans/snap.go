package midtrans

import "unicode/utf8"

// ItemNameLimit is the longest item name Snap accepts.
const ItemNameLimit = 50

// SnapRequest is the body of a Snap transaction request.
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
}

// TransactionDetails identifies the merchant order being paid.
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// CustomerDetails prefills the payer on the hosted payment page.
type CustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ItemDetail is one purchased line.
type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// SnapResponse carries the hosted payment page for a transaction.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TruncateItemName clips name to ItemNameLimit runes.
func TruncateItemName(name string) string {
	if utf8.RuneCountInString(name) <= ItemNameLimit {
		return name
	}
	runes := []rune(name)
	return string(runes[:ItemNameLimit])
}
