package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Step int

const (
	StepCart Step = iota
	StepPayment
	StepConfirmed
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepPayment:
		return "payment"
	case StepConfirmed:
		return "confirmed"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Machine is the checkout flow: Cart -> Payment -> Confirmed. A failed
// submission returns to Cart with the error message kept for display.
type Machine struct {
	mu         sync.Mutex
	step       Step
	customer   Customer
	submitting bool
	message    string
	confirmed  *orders.Order

	cart      *Cart
	submitter *Submitter
}

func NewMachine(sub *Submitter) *Machine {
	return &Machine{
		cart:      sub.Cart,
		submitter: sub,
		customer:  Customer{PaymentMethod: orders.PaymentYape},
	}
}

func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Message is the last submission error shown to the shopper, or "".
func (m *Machine) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

func (m *Machine) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

func (m *Machine) SetCustomer(name, phone string) {
	m.mu.Lock()
	m.customer.Name = name
	m.customer.Phone = phone
	m.mu.Unlock()
}

func (m *Machine) SetPaymentMethod(pm orders.PaymentMethod) error {
	if !pm.Valid() {
		return fmt.Errorf("%w: payment method %q", orders.ErrInvalidOrder, pm)
	}
	m.mu.Lock()
	m.customer.PaymentMethod = pm
	m.mu.Unlock()
	return nil
}

// ToPayment moves Cart -> Payment once the cart has items and the customer
// name and phone are filled in.
func (m *Machine) ToPayment() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepCart {
		return ErrWrongStep
	}
	if m.cart.Empty() {
		return ErrEmptyCart
	}
	if strings.TrimSpace(m.customer.Name) == "" || strings.TrimSpace(m.customer.Phone) == "" {
		return ErrMissingCustomer
	}
	m.message = ""
	m.step = StepPayment
	return nil
}

// Back returns from Payment to Cart.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepPayment || m.submitting {
		return ErrWrongStep
	}
	m.step = StepCart
	return nil
}

// Confirm submits the order. Only one submission may be in flight.
func (m *Machine) Confirm(ctx context.Context) (orders.Order, error) {
	m.mu.Lock()
	if m.submitting {
		m.mu.Unlock()
		return orders.Order{}, ErrSubmissionInFlight
	}
	if m.step != StepPayment {
		m.mu.Unlock()
		return orders.Order{}, ErrWrongStep
	}
	m.submitting = true
	m.message = ""
	customer := m.customer
	m.mu.Unlock()

	o, err := m.submitter.Submit(ctx, customer)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitting = false
	if err != nil {
		m.step = StepCart
		m.message = UserMessage(err)
		return orders.Order{}, err
	}
	m.confirmed = &o
	m.step = StepConfirmed
	return o, nil
}

// Confirmed returns the snapshot taken at confirmation. It stays available
// after the cart has been cleared.
func (m *Machine) Confirmed() (orders.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmed == nil {
		return orders.Order{}, false
	}
	return *m.confirmed, true
}

// PaymentLink builds the messaging deep link for the confirmed order.
func (m *Machine) PaymentLink(phone string) (string, error) {
	o, ok := m.Confirmed()
	if !ok {
		return "", ErrNotConfirmed
	}
	return PaymentLink(phone, o), nil
}

// PaymentLink returns a wa.me link whose text summarizes o for sending the
// payment proof by hand.
func PaymentLink(phone string, o orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola, mi pedido es *%s*.\n\nDetalle:\n", o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %dx %s\n", it.Quantity, it.Name)
	}
	fmt.Fprintf(&b, "\nTotal: S/ %.2f\n\nAdjunto mi constancia de pago.", o.Total)

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?" + url.Values{"text": {b.String()}}.Encode()
}
