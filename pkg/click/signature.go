package click

import (
	"crypto/md5"
	"crypto/subtle"
	"fmt"
)

// PrepareParams are the raw webhook fields taking part in signature
// verification. They are kept as the strings that arrived on the wire; the
// digest is defined over the exact concatenation the gateway sent.
type PrepareParams struct {
	ClickTransID    string
	ServiceID       string
	MerchantTransID string
	Amount          string
	Action          string
	SignTime        string
	SignString      string
}

type CompleteParams struct {
	PrepareParams
	MerchantPrepareID string
}

// PrepareSignature computes
// md5(click_trans_id + service_id + secret + merchant_trans_id + amount + action + sign_time).
func PrepareSignature(p PrepareParams, secretKey string) string {
	return md5hex(p.ClickTransID + p.ServiceID + secretKey + p.MerchantTransID + p.Amount + p.Action + p.SignTime)
}

// CompleteSignature includes merchant_prepare_id before the amount.
func CompleteSignature(p CompleteParams, secretKey string) string {
	return md5hex(p.ClickTransID + p.ServiceID + secretKey + p.MerchantTransID + p.MerchantPrepareID + p.Amount + p.Action + p.SignTime)
}

func VerifyPrepare(p PrepareParams, secretKey string) bool {
	return equal(PrepareSignature(p, secretKey), p.SignString)
}

func VerifyComplete(p CompleteParams, secretKey string) bool {
	return equal(CompleteSignature(p, secretKey), p.SignString)
}

func md5hex(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

func equal(want, got string) bool {
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
