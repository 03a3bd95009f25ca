package payfast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldSetOrdersAndFilters(t *testing.T) {
	fs := NewFieldSet(map[string]string{
		FieldCustomStr1:  "INF123",
		FieldAmount:      "0",
		FieldMerchantID:  "10000100",
		FieldCustomStr2:  "false",
		FieldCustomStr3:  "   ",
		FieldNameLast:    "",
		"unknown_field":  "dropped",
		FieldSignature:   "not canonical",
		FieldReturnURL:   "https://shop.example/payment/success",
		FieldMerchantKey: " 46f0cd694581a ",
	})

	assert.Equal(t, []string{
		FieldMerchantID,
		FieldMerchantKey,
		FieldReturnURL,
		FieldAmount,
		FieldCustomStr1,
		FieldCustomStr2,
	}, fs.Names())

	v, ok := fs.Get(FieldMerchantKey)
	require.True(t, ok)
	assert.Equal(t, "46f0cd694581a", v)

	v, ok = fs.Get(FieldAmount)
	require.True(t, ok)
	assert.Equal(t, "0", v)

	_, ok = fs.Get(FieldCustomStr3)
	assert.False(t, ok)
}

func TestCanonicalOrderIsACopy(t *testing.T) {
	order := CanonicalOrder()
	order[0] = "tampered"
	assert.Equal(t, FieldMerchantID, CanonicalOrder()[0])
}

func TestParamStringRoundTrip(t *testing.T) {
	fs := NewFieldSet(map[string]string{
		FieldMerchantID:      "10000100",
		FieldMerchantKey:     "46f0cd694581a",
		FieldReturnURL:       "https://shop.example.co.za/payment/success?reference=INF%20123",
		FieldNameFirst:       "Zoë",
		FieldNameLast:        "O'Neil (Jr)",
		FieldAmount:          "1500.00",
		FieldItemName:        "Away kit * limited!",
		FieldItemDescription: "Order INF123 from iNfinite store.SA",
		FieldCustomStr5:      "2026-10-19T10:00:00Z",
	}).WithSignature("jt7NOE43FZPn")

	encoded := fs.ParamString()
	assert.Contains(t, encoded, "name_last=O%27Neil+%28Jr%29")
	assert.Contains(t, encoded, "item_name=Away+kit+%2A+limited%21")

	decoded, err := ParseParamString(encoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, decoded.ParamString())
	assert.Equal(t, fs.Fields(), decoded.Fields())
	assert.Equal(t, fs.Signature(), decoded.Signature())
}

func TestParseParamStringErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "no equals", in: "merchant_id"},
		{name: "unknown field", in: "merchant_id=1&colour=red"},
		{name: "signature not last", in: "signature=abc&merchant_id=1"},
		{name: "duplicate", in: "amount=1&amount=2"},
		{name: "bad escape", in: "item_name=%zz"},
		{name: "empty value", in: "amount="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParamString(tt.in)
			assert.Error(t, err)
		})
	}

	fs, err := ParseParamString("")
	require.NoError(t, err)
	assert.Zero(t, fs.Len())
}

func TestFieldSetMarshalJSONKeepsOrder(t *testing.T) {
	fs := NewFieldSet(map[string]string{
		FieldAmount:     "10.00",
		FieldMerchantID: "10000100",
		FieldItemName:   `Say "hi"`,
	})

	data, err := json.Marshal(fs)
	require.NoError(t, err)
	assert.Equal(t, `{"merchant_id":"10000100","amount":"10.00","item_name":"Say \"hi\""}`, string(data))
}

func TestWithSignatureWithoutPassphrase(t *testing.T) {
	fs := NewFieldSet(map[string]string{FieldMerchantID: "1", FieldAmount: "1.00"})

	unsigned := fs.WithSignature("")
	_, ok := unsigned.Get(FieldSignature)
	assert.False(t, ok)

	signed := fs.WithSignature("secret")
	names := signed.Names()
	assert.Equal(t, FieldSignature, names[len(names)-1])
	assert.Equal(t, 2, fs.Len(), "signing must not mutate the caller's set")
}
