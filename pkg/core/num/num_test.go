package num

import (
	"errors"
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	if v, err := Add(math.MaxUint64-1, 1); err != nil || v != math.MaxUint64 {
		t.Fatalf("Add = %d, %v", v, err)
	}
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Add overflow err = %v, want ErrOverflow", err)
	}
}

func TestSub(t *testing.T) {
	if v, err := Sub(5, 5); err != nil || v != 0 {
		t.Fatalf("Sub = %d, %v", v, err)
	}
	if _, err := Sub(5, 6); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("Sub underflow err = %v, want ErrUnderflow", err)
	}
}

func TestMul(t *testing.T) {
	if v, err := Mul(1<<32, 1<<31); err != nil || v != 1<<63 {
		t.Fatalf("Mul = %d, %v", v, err)
	}
	if _, err := Mul(1<<32, 1<<32); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Mul overflow err = %v, want ErrOverflow", err)
	}
	if v, err := Mul(math.MaxUint64, 0); err != nil || v != 0 {
		t.Fatalf("Mul by zero = %d, %v", v, err)
	}
}

func TestMin(t *testing.T) {
	if Min(3, 7) != 3 || Min(7, 3) != 3 || Min(4, 4) != 4 {
		t.Fatal("Min wrong")
	}
}
