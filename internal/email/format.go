package email

import (
	"regexp"
	"strings"

	"github.com/Priya8975/donate/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SendGrid personalization names may not contain commas or semicolons.
var nameSeparators = regexp.MustCompile(`[\s,;]*[,;][\s,;]*`)

var cardBrands = map[string]string{
	"amex":       "American Express",
	"diners":     "Diners Club",
	"discover":   "Discover",
	"jcb":        "JCB",
	"mastercard": "Mastercard",
	"unionpay":   "UnionPay",
	"visa":       "Visa",
}

var wallets = map[string]string{
	"amex_express_checkout": "Amex Express Checkout",
	"apple_pay":             "Apple Pay",
	"google_pay":            "Google Pay",
	"link":                  "Link",
	"masterpass":            "Masterpass",
	"samsung_pay":           "Samsung Pay",
	"visa_checkout":         "Visa Checkout",
}

var methodTypes = map[string]string{
	"ach_debit":       "ACH debit",
	"cashapp":         "Cash App Pay",
	"link":            "Link",
	"paypal":          "PayPal",
	"sepa_debit":      "SEPA Direct Debit",
	"us_bank_account": "US bank account",
}

// DisplayName makes a donor name safe for a SendGrid personalization:
// every run of commas and semicolons becomes a single space.
func DisplayName(name string) string {
	return strings.TrimSpace(nameSeparators.ReplaceAllString(name, " "))
}

// DescribePaymentMethod renders e.g. "Visa credit card via Apple Pay" for
// cards and a readable label for other method types.
func DescribePaymentMethod(pm *domain.PaymentMethodDetails) string {
	if pm == nil {
		return ""
	}
	if pm.Type != "card" && pm.CardBrand == "" {
		return methodTypeLabel(pm.Type)
	}

	var parts []string
	if brand := lookupLabel(cardBrands, pm.CardBrand); brand != "" {
		parts = append(parts, brand)
	}
	if f := pm.CardFunding; f != "" && f != "unknown" {
		parts = append(parts, f)
	}
	parts = append(parts, "card")

	desc := strings.Join(parts, " ")
	if wallet := lookupLabel(wallets, pm.WalletType); wallet != "" {
		desc += " via " + wallet
	}
	return desc
}

func methodTypeLabel(t string) string {
	if label, ok := methodTypes[t]; ok {
		return label
	}
	return strings.ReplaceAll(t, "_", " ")
}

func lookupLabel(labels map[string]string, key string) string {
	if key == "" || key == "unknown" {
		return ""
	}
	if label, ok := labels[key]; ok {
		return label
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.AmericanEnglish).String(strings.ReplaceAll(key, "_", " "))
}
