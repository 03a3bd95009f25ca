package payfast

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/config"
	"payfast-gateway/internal/models"
)

const (
	maxNameLength      = 100
	maxItemNameLength  = 100
	maxFieldLength     = 255
	MaxReferenceLength = 255

	defaultFirstName = "Customer"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Redirect is what the browser needs to auto-submit the checkout form.
type Redirect struct {
	URL         string   `json:"redirectUrl"`
	Fields      FieldSet `json:"fields"`
	Reference   string   `json:"reference"`
	Amount      string   `json:"amount"`
	Environment string   `json:"environment"`
}

// Initiator turns checkout requests into signed gateway field sets. It makes
// no network calls.
type Initiator struct {
	cfg config.PayFastConfig
	now func() time.Time
}

func NewInitiator(cfg config.PayFastConfig) *Initiator {
	return &Initiator{cfg: cfg, now: time.Now}
}

// WithClock replaces the clock used for the creation timestamp field.
func (i *Initiator) WithClock(now func() time.Time) *Initiator {
	i.now = now
	return i
}

func (i *Initiator) Build(req *models.PaymentRequest) (*Redirect, error) {
	amount, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	returnURL, cancelURL, notifyURL, err := callbackURLs(i.cfg.BaseURL, strings.TrimSpace(req.Reference))
	if err != nil {
		return nil, err
	}

	creds := i.cfg.Credentials()
	customer := req.Customer()
	reference := strings.TrimSpace(req.Reference)
	first, last := splitName(customer.Name)

	values := map[string]string{
		FieldMerchantID:      creds.MerchantID,
		FieldMerchantKey:     creds.MerchantKey,
		FieldReturnURL:       returnURL,
		FieldCancelURL:       cancelURL,
		FieldNotifyURL:       notifyURL,
		FieldNameFirst:       first,
		FieldNameLast:        last,
		FieldEmailAddress:    truncate(customer.Email, maxFieldLength),
		FieldAmount:          amount.StringFixed(2),
		FieldItemName:        truncate(strings.TrimSpace(req.Description), maxItemNameLength),
		FieldItemDescription: truncate(fmt.Sprintf("Order %s from iNfinite store.SA", reference), maxFieldLength),
		FieldCustomStr1:      reference,
		FieldCustomStr2:      truncate(i.cfg.SourceTag, maxFieldLength),
		FieldCustomStr3:      truncate(customer.Phone, maxFieldLength),
		FieldCustomStr4:      fmt.Sprintf("%d items", len(req.Items)),
		FieldCustomStr5:      i.now().UTC().Format(time.RFC3339),
	}

	fields := NewFieldSet(values).WithSignature(creds.Passphrase)

	return &Redirect{
		URL:         creds.ProcessURL,
		Fields:      fields,
		Reference:   reference,
		Amount:      amount.StringFixed(2),
		Environment: i.cfg.Environment(),
	}, nil
}

// validateRequest fails on the first invalid field and returns the amount
// rounded to cents.
func validateRequest(req *models.PaymentRequest) (decimal.Decimal, error) {
	if req == nil {
		return decimal.Zero, apperr.Validation("body", "payment request is required")
	}

	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Validation("amount", "must be greater than zero")
	}
	if strings.TrimSpace(req.Description) == "" {
		return decimal.Zero, apperr.Validation("description", "is required")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return decimal.Zero, apperr.Validation("customerName", "is required")
	}
	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		return decimal.Zero, apperr.Validation("customerEmail", "is required")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return decimal.Zero, apperr.Validation("reference", "is required")
	}
	if !emailPattern.MatchString(email) {
		return decimal.Zero, apperr.Validation("customerEmail", "invalid email format")
	}
	if utf8.RuneCountInString(reference) > MaxReferenceLength {
		return decimal.Zero, apperr.Validation("reference", fmt.Sprintf("must be at most %d characters", MaxReferenceLength))
	}
	return amount, nil
}

func callbackURLs(baseURL, reference string) (returnURL, cancelURL, notifyURL string, err error) {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return "", "", "", apperr.Configuration("PUBLIC_BASE_URL", "must be an absolute http(s) URL")
	}
	root := strings.TrimRight(base.String(), "/")
	ref := url.QueryEscape(reference)

	returnURL = root + "/payment/success?reference=" + ref
	cancelURL = root + "/payment/cancel?reference=" + ref
	notifyURL = root + "/payment/notify"

	for _, u := range []string{returnURL, cancelURL, notifyURL} {
		if parsed, perr := url.ParseRequestURI(u); perr != nil || parsed.Host == "" {
			return "", "", "", apperr.Configuration("PUBLIC_BASE_URL", "derived callback URL is invalid")
		}
	}

	// URL fields share the 255 character limit with every other field and
	// are never truncated.
	if len(notifyURL) > maxFieldLength {
		return "", "", "", apperr.Configuration("PUBLIC_BASE_URL", fmt.Sprintf("callback URLs must be at most %d characters", maxFieldLength))
	}
	if len(returnURL) > maxFieldLength || len(cancelURL) > maxFieldLength {
		return "", "", "", apperr.Validation("reference", fmt.Sprintf("too long: callback URLs must be at most %d characters", maxFieldLength))
	}
	return returnURL, cancelURL, notifyURL, nil
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return defaultFirstName, ""
	}
	first = truncate(parts[0], maxNameLength)
	last = truncate(strings.Join(parts[1:], " "), maxNameLength)
	if first == "" {
		first = defaultFirstName
	}
	return first, last
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
