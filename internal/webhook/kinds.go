package webhook

// EventKind is the closed set of processor event types the dispatcher acts
// on. Everything else parses to KindUnknown.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindCheckoutCompleted
	KindInvoicePaid
	KindInvoicePaymentFailed
)

// Processor event type strings.
const (
	TypeCheckoutCompleted    = "checkout.session.completed"
	TypeInvoicePaid          = "invoice.payment_succeeded"
	TypeInvoicePaymentFailed = "invoice.payment_failed"
)

// ParseEventKind maps an event type string onto a kind by exact match.
func ParseEventKind(eventType string) EventKind {
	switch eventType {
	case TypeCheckoutCompleted:
		return KindCheckoutCompleted
	case TypeInvoicePaid:
		return KindInvoicePaid
	case TypeInvoicePaymentFailed:
		return KindInvoicePaymentFailed
	default:
		return KindUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case KindCheckoutCompleted:
		return TypeCheckoutCompleted
	case KindInvoicePaid:
		return TypeInvoicePaid
	case KindInvoicePaymentFailed:
		return TypeInvoicePaymentFailed
	default:
		return "unknown"
	}
}
