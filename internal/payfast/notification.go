package payfast

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"payfast-gateway/internal/apperr"
)

const maxMultipartMemory = 1 << 20

// Encodings a notification body can arrive in.
const (
	EncodingForm      = "form"
	EncodingMultipart = "multipart"
)

// Decoded is the result of decoding a notification body.
type Decoded struct {
	Encoding string
	Values   map[string]string
}

// DecodeNotification picks a decoder from the Content-Type header once.
// Form and multipart bodies use their own decoders; anything else is read as
// a url-encoded form, which is what the gateway documents.
func DecodeNotification(contentType string, body []byte) (*Decoded, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", apperr.ErrMalformedNotification)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	var decoded *Decoded
	switch mediaType {
	case "multipart/form-data":
		decoded, err = decodeMultipart(body, params["boundary"])
	default:
		decoded, err = decodeForm(body)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedNotification, err)
	}
	if len(decoded.Values) == 0 {
		return nil, fmt.Errorf("%w: no fields", apperr.ErrMalformedNotification)
	}
	return decoded, nil
}

func decodeForm(body []byte) (*Decoded, error) {
	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	return &Decoded{Encoding: EncodingForm, Values: firstValues(parsed)}, nil
}

func decodeMultipart(body []byte, boundary string) (*Decoded, error) {
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}
	form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxMultipartMemory)
	if err != nil {
		return nil, err
	}
	defer form.RemoveAll()

	return &Decoded{Encoding: EncodingMultipart, Values: firstValues(form.Value)}, nil
}

func firstValues(in map[string][]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Notification is a decoded IPN.
type Notification struct {
	PaymentID     string
	Reference     string
	Status        string
	AmountGross   string
	CustomerEmail string
	Signature     string
	Values        map[string]string
}

// ParseNotification checks that the gateway payment id, status and caller
// reference are present.
func ParseNotification(values map[string]string) (*Notification, error) {
	n := &Notification{
		PaymentID:     strings.TrimSpace(values[FieldPaymentID]),
		Reference:     strings.TrimSpace(values[FieldCustomStr1]),
		Status:        strings.ToUpper(strings.TrimSpace(values[FieldPaymentStatus])),
		AmountGross:   strings.TrimSpace(values[FieldAmountGross]),
		CustomerEmail: strings.TrimSpace(values[FieldEmailAddress]),
		Signature:     strings.TrimSpace(values[FieldSignature]),
		Values:        values,
	}

	var missing []string
	if n.PaymentID == "" {
		missing = append(missing, FieldPaymentID)
	}
	if n.Status == "" {
		missing = append(missing, FieldPaymentStatus)
	}
	if n.Reference == "" {
		missing = append(missing, FieldCustomStr1)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", apperr.ErrIncompleteNotification, strings.Join(missing, ", "))
	}
	return n, nil
}

// Amount parses amount_gross. ok is false when it is absent or not a number.
func (n *Notification) Amount() (amount decimal.Decimal, ok bool) {
	if n.AmountGross == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(n.AmountGross)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// Payload renders the raw values deterministically for the audit log.
// The signature is kept; it is not a secret.
func (n *Notification) Payload() string {
	keys := make([]string, 0, len(n.Values))
	for k := range n.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make([]string, 0, len(keys))
	for _, k := range keys {
		q = append(q, k+"="+Encode(n.Values[k]))
	}
	return strings.Join(q, "&")
}

// IsTestPaymentID recognises the synthetic ids used by the admin test page.
func IsTestPaymentID(id string) bool {
	return strings.HasPrefix(id, "test") || strings.Contains(id, "TEST")
}
