package payfast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Gateway field names.
const (
	FieldMerchantID          = "merchant_id"
	FieldMerchantKey         = "merchant_key"
	FieldReturnURL           = "return_url"
	FieldCancelURL           = "cancel_url"
	FieldNotifyURL           = "notify_url"
	FieldNameFirst           = "name_first"
	FieldNameLast            = "name_last"
	FieldEmailAddress        = "email_address"
	FieldCellNumber          = "cell_number"
	FieldAmount              = "amount"
	FieldItemName            = "item_name"
	FieldItemDescription     = "item_description"
	FieldCustomInt1          = "custom_int1"
	FieldCustomInt2          = "custom_int2"
	FieldCustomInt3          = "custom_int3"
	FieldCustomInt4          = "custom_int4"
	FieldCustomInt5          = "custom_int5"
	FieldCustomStr1          = "custom_str1"
	FieldCustomStr2          = "custom_str2"
	FieldCustomStr3          = "custom_str3"
	FieldCustomStr4          = "custom_str4"
	FieldCustomStr5          = "custom_str5"
	FieldEmailConfirmation   = "email_confirmation"
	FieldConfirmationAddress = "confirmation_address"
	FieldPaymentMethod       = "payment_method"
	FieldSubscriptionType    = "subscription_type"
	FieldBillingDate         = "billing_date"
	FieldRecurringAmount     = "recurring_amount"
	FieldFrequency           = "frequency"
	FieldCycles              = "cycles"

	FieldSignature = "signature"

	// Notification-only fields.
	FieldPaymentID     = "pf_payment_id"
	FieldPaymentStatus = "payment_status"
	FieldAmountGross   = "amount_gross"
)

// canonicalOrder is the sequence the gateway hashes outbound requests in.
// It is not alphabetical.
var canonicalOrder = []string{
	FieldMerchantID,
	FieldMerchantKey,
	FieldReturnURL,
	FieldCancelURL,
	FieldNotifyURL,
	FieldNameFirst,
	FieldNameLast,
	FieldEmailAddress,
	FieldCellNumber,
	FieldAmount,
	FieldItemName,
	FieldItemDescription,
	FieldCustomInt1,
	FieldCustomInt2,
	FieldCustomInt3,
	FieldCustomInt4,
	FieldCustomInt5,
	FieldCustomStr1,
	FieldCustomStr2,
	FieldCustomStr3,
	FieldCustomStr4,
	FieldCustomStr5,
	FieldEmailConfirmation,
	FieldConfirmationAddress,
	FieldPaymentMethod,
	FieldSubscriptionType,
	FieldBillingDate,
	FieldRecurringAmount,
	FieldFrequency,
	FieldCycles,
}

var canonicalIndex = func() map[string]int {
	idx := make(map[string]int, len(canonicalOrder))
	for i, name := range canonicalOrder {
		idx[name] = i
	}
	return idx
}()

// CanonicalOrder returns a copy of the outbound field order.
func CanonicalOrder() []string {
	out := make([]string, len(canonicalOrder))
	copy(out, canonicalOrder)
	return out
}

type Field struct {
	Name  string
	Value string
}

// FieldSet is an ordered, immutable set of gateway fields. Only canonical
// names are kept, blank values are dropped and a signature, when present,
// is always last.
type FieldSet struct {
	fields []Field
}

// NewFieldSet orders values canonically. Unknown keys and values that are
// empty after trimming are discarded; "0" and "false" are kept.
func NewFieldSet(values map[string]string) FieldSet {
	fields := make([]Field, 0, len(values))
	for _, name := range canonicalOrder {
		v, ok := values[name]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		fields = append(fields, Field{Name: name, Value: v})
	}
	return FieldSet{fields: fields}
}

func (fs FieldSet) Len() int {
	return len(fs.fields)
}

// Fields returns a copy of the ordered fields.
func (fs FieldSet) Fields() []Field {
	out := make([]Field, len(fs.fields))
	copy(out, fs.fields)
	return out
}

func (fs FieldSet) Get(name string) (string, bool) {
	for _, f := range fs.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (fs FieldSet) Names() []string {
	names := make([]string, len(fs.fields))
	for i, f := range fs.fields {
		names[i] = f.Name
	}
	return names
}

func (fs FieldSet) Signature() string {
	v, _ := fs.Get(FieldSignature)
	return v
}

// unsigned returns the set without its signature field.
func (fs FieldSet) unsigned() FieldSet {
	if fs.Signature() == "" {
		return fs
	}
	return FieldSet{fields: fs.fields[:len(fs.fields)-1]}
}

// WithSignature signs the set and appends the signature. A blank passphrase
// leaves the set unsigned.
func (fs FieldSet) WithSignature(passphrase string) FieldSet {
	base := fs.unsigned()
	if strings.TrimSpace(passphrase) == "" {
		return base
	}
	fields := make([]Field, len(base.fields), len(base.fields)+1)
	copy(fields, base.fields)
	fields = append(fields, Field{Name: FieldSignature, Value: Sign(base, passphrase)})
	return FieldSet{fields: fields}
}

// ParamString renders the set as key=value pairs joined by '&', in order.
func (fs FieldSet) ParamString() string {
	var b strings.Builder
	for i, f := range fs.fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(Encode(f.Value))
	}
	return b.String()
}

// MarshalJSON writes the fields as a JSON object that keeps their order.
func (fs FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseParamString decodes a string produced by ParamString. Field order is
// preserved so re-encoding reproduces the input byte for byte.
func ParseParamString(s string) (FieldSet, error) {
	if s == "" {
		return FieldSet{}, nil
	}

	pairs := strings.Split(s, "&")
	fields := make([]Field, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for i, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return FieldSet{}, fmt.Errorf("pair %d has no '='", i)
		}
		_, known := canonicalIndex[name]
		if !known && name != FieldSignature {
			return FieldSet{}, fmt.Errorf("unknown field %q", name)
		}
		if name == FieldSignature && i != len(pairs)-1 {
			return FieldSet{}, fmt.Errorf("signature must be the last field")
		}
		if seen[name] {
			return FieldSet{}, fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true

		value, err := url.QueryUnescape(raw)
		if err != nil {
			return FieldSet{}, fmt.Errorf("field %q: %w", name, err)
		}
		if strings.TrimSpace(value) == "" {
			return FieldSet{}, fmt.Errorf("field %q is empty", name)
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return FieldSet{fields: fields}, nil
}
