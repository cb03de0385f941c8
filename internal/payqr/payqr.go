// Package payqr builds bank-transfer QR image URLs for pending orders. The
// customer scans the code, transfers the exact amount with the order id as
// the memo, and the payment rail reconciles it out of band.
package payqr

import (
	"fmt"
	"net/url"
	"strconv"
)

const qrImageHost = "https://img.vietqr.io/image"

type Config struct {
	BankCode      string
	AccountNumber string
	AccountName   string
}

// PaymentURL returns the QR image URL for a pending order. The memo carries
// the subject id so the incoming transfer can be matched to it.
func (c Config) PaymentURL(subjectID string, amount int64) string {
	q := url.Values{}
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("addInfo", memo(subjectID))
	q.Set("accountName", c.AccountName)

	return fmt.Sprintf("%s/%s-%s-compact2.png?%s", qrImageHost, c.BankCode, c.AccountNumber, q.Encode())
}

func memo(subjectID string) string {
	return "SMARTMALL " + subjectID
}
