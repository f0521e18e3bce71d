package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"testing"
)

func TestReverse(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6}
	got := Reverse(in)

	if !reflect.DeepEqual(got, []byte{6, 5, 4, 3, 2, 1}) {
		t.Fatalf("Reverse(%v) = %v", in, got)
	}

	if in[0] != 1 {
		t.Fatalf("Reverse modified its input: %v", in)
	}
}

func TestErrorIsAnyOf(t *testing.T) {
	err := fmt.Errorf("failed to initiate scan: %w", context.Canceled)

	if !ErrorIsAnyOf(err, context.DeadlineExceeded, context.Canceled) {
		t.Fatalf("ErrorIsAnyOf(%v) = false, wanted true", err)
	}

	if ErrorIsAnyOf(errors.New("boom"), context.DeadlineExceeded, context.Canceled) {
		t.Fatalf("ErrorIsAnyOf(boom) = true, wanted false")
	}

	if ErrorIsAnyOf(nil, context.Canceled) {
		t.Fatalf("ErrorIsAnyOf(nil) = true, wanted false")
	}
}

func TestIsContextDone(t *testing.T) {
	if !IsContextDone(fmt.Errorf("scan: %w", context.DeadlineExceeded)) {
		t.Fatalf("IsContextDone(deadline) = false, wanted true")
	}

	if IsContextDone(errors.New("boom")) {
		t.Fatalf("IsContextDone(boom) = true, wanted false")
	}
}

func TestToZeroLogArray(t *testing.T) {
	addr, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

	if ToZeroLogArray([]net.HardwareAddr{addr}) == nil {
		t.Fatalf("ToZeroLogArray() returned nil")
	}
}
