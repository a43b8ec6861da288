package bakong

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/pkg/enums"
)

// EMVCo MPM tags used by the KHQR individual-account layout.
const (
	tagPayloadFormat       = "00"
	tagPointOfInitiation   = "01"
	tagMerchantAccountInfo = "29"
	tagMerchantCategory    = "52"
	tagCurrency            = "53"
	tagAmount              = "54"
	tagCountryCode         = "58"
	tagMerchantName        = "59"
	tagMerchantCity        = "60"
	tagAdditionalData      = "62"
	tagTimestamp           = "99"
	tagCRC                 = "63"

	subTagAccountID     = "00"
	subTagBillNumber    = "01"
	subTagMobileNumber  = "02"
	subTagStoreLabel    = "03"
	subTagTerminalLabel = "07"
	subTagMillis        = "00"

	payloadFormatValue     = "01"
	pointOfInitiationValue = "12" // dynamic QR
	merchantCategoryValue  = "5999"
	countryCodeValue       = "KH"
)

var currencyNumericCodes = map[enums.Currency]string{
	enums.CurrencyUSD: "840",
	enums.CurrencyKHR: "116",
}

// QRParams carries everything needed to render one dynamic KHQR payload.
type QRParams struct {
	AccountID     string
	MerchantName  string
	MerchantCity  string
	Amount        decimal.Decimal
	Currency      enums.Currency
	BillNumber    string
	MobileNumber  string
	StoreLabel    string
	TerminalLabel string
}

func (p QRParams) validate() error {
	if strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("khqr: account id required")
	}
	if strings.TrimSpace(p.MerchantName) == "" {
		return fmt.Errorf("khqr: merchant name required")
	}
	if strings.TrimSpace(p.MerchantCity) == "" {
		return fmt.Errorf("khqr: merchant city required")
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("khqr: amount must be positive")
	}
	if _, ok := currencyNumericCodes[p.Currency]; !ok {
		return fmt.Errorf("khqr: unsupported currency %q", p.Currency)
	}
	if strings.TrimSpace(p.BillNumber) == "" {
		return fmt.Errorf("khqr: bill number required")
	}
	return nil
}

// BuildQR renders the EMV TLV payload for the given parameters. KHR amounts
// carry no fractional riel so they are truncated to whole units.
func BuildQR(params QRParams, now time.Time) (string, error) {
	if err := params.validate(); err != nil {
		return "", err
	}

	// USD renders with cents, KHR as whole riel. The textual form must be
	// stable because the charge ref is the md5 of the payload.
	amountValue := params.Amount.StringFixed(2)
	if params.Currency == enums.CurrencyKHR {
		amountValue = params.Amount.Truncate(0).String()
	}

	var b strings.Builder
	writeTLV(&b, tagPayloadFormat, payloadFormatValue)
	writeTLV(&b, tagPointOfInitiation, pointOfInitiationValue)

	var account strings.Builder
	writeTLV(&account, subTagAccountID, params.AccountID)
	writeTLV(&b, tagMerchantAccountInfo, account.String())

	writeTLV(&b, tagMerchantCategory, merchantCategoryValue)
	writeTLV(&b, tagCurrency, currencyNumericCodes[params.Currency])
	writeTLV(&b, tagAmount, amountValue)
	writeTLV(&b, tagCountryCode, countryCodeValue)
	writeTLV(&b, tagMerchantName, truncateField(params.MerchantName, 25))
	writeTLV(&b, tagMerchantCity, truncateField(params.MerchantCity, 15))

	var additional strings.Builder
	writeTLV(&additional, subTagBillNumber, truncateField(params.BillNumber, 25))
	if params.MobileNumber != "" {
		writeTLV(&additional, subTagMobileNumber, truncateField(params.MobileNumber, 25))
	}
	if params.StoreLabel != "" {
		writeTLV(&additional, subTagStoreLabel, truncateField(params.StoreLabel, 25))
	}
	if params.TerminalLabel != "" {
		writeTLV(&additional, subTagTerminalLabel, truncateField(params.TerminalLabel, 25))
	}
	writeTLV(&b, tagAdditionalData, additional.String())

	var timestamp strings.Builder
	writeTLV(&timestamp, subTagMillis, strconv.FormatInt(now.UnixMilli(), 10))
	writeTLV(&b, tagTimestamp, timestamp.String())

	payload := b.String() + tagCRC + "04"
	return payload + crc16Hex(payload), nil
}

// ChargeRef derives the reference used to poll a QR payment, matching the
// gateway's md5-of-payload convention.
func ChargeRef(qrPayload string) string {
	sum := md5.Sum([]byte(qrPayload))
	return hex.EncodeToString(sum[:])
}

func writeTLV(b *strings.Builder, tag, value string) {
	b.WriteString(tag)
	fmt.Fprintf(b, "%02d", len(value))
	b.WriteString(value)
}

func truncateField(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max]
}

// crc16Hex computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as the
// EMVCo spec requires, rendered as four upper-case hex digits.
func crc16Hex(payload string) string {
	crc := uint16(0xFFFF)
	for _, c := range []byte(payload) {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
