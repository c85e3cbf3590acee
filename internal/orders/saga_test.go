package orders

import "testing"

func TestValidateCreateRequest(t *testing.T) {
	valid := CreateRequest{
		CustomerID:     "cust-1",
		IdempotencyKey: "key-1",
		Items:          []ItemInput{{ProductID: "p1", Quantity: 1}},
	}
	if err := validateCreateRequest(valid); err != nil {
		t.Fatalf("expected valid request to pass, got %v", err)
	}

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"missing customer", CreateRequest{IdempotencyKey: "k", Items: valid.Items}},
		{"missing idempotency key", CreateRequest{CustomerID: "c", Items: valid.Items}},
		{"no items", CreateRequest{CustomerID: "c", IdempotencyKey: "k"}},
		{"missing product id", CreateRequest{CustomerID: "c", IdempotencyKey: "k", Items: []ItemInput{{Quantity: 1}}}},
		{"non-positive quantity", CreateRequest{CustomerID: "c", IdempotencyKey: "k", Items: []ItemInput{{ProductID: "p1", Quantity: 0}}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := validateCreateRequest(c.req); err == nil {
				t.Fatalf("expected validation error")
			} else if err.Kind != ErrValidation {
				t.Fatalf("expected ErrValidation, got %s", err.Kind)
			}
		})
	}
}

func TestHashRequest_OrderIndependent(t *testing.T) {
	a := CreateRequest{
		CustomerID: "c1",
		Items: []ItemInput{
			{ProductID: "p2", Quantity: 1},
			{ProductID: "p1", Quantity: 3},
		},
	}
	b := CreateRequest{
		CustomerID: "c1",
		Items: []ItemInput{
			{ProductID: "p1", Quantity: 3},
			{ProductID: "p2", Quantity: 1},
		},
	}
	if hashRequest(a) != hashRequest(b) {
		t.Fatalf("hash must not depend on item order")
	}
}

func TestHashRequest_DiffersOnContent(t *testing.T) {
	a := CreateRequest{CustomerID: "c1", Items: []ItemInput{{ProductID: "p1", Quantity: 1}}}
	b := CreateRequest{CustomerID: "c1", Items: []ItemInput{{ProductID: "p1", Quantity: 2}}}
	if hashRequest(a) == hashRequest(b) {
		t.Fatalf("hash must change when quantity changes")
	}
}

func TestErrorKindHTTPStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		ErrValidation:      400,
		ErrConflict:        409,
		ErrNotFound:        404,
		ErrPricingFailed:   500,
		ErrInventoryFailed: 500,
		ErrPaymentFailed:   500,
		ErrOrderFailed:     500,
		ErrInternal:        500,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusPending, StatusCancelled) {
		t.Fatal("pending -> cancelled should be valid")
	}
	if CanTransition(StatusCancelled, StatusPending) {
		t.Fatal("cancelled -> pending should be invalid")
	}
}
