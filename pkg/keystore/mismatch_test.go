package keystore_test

import (
	"testing"

	"github.com/wisun-go/wsbrd/pkg/keystore"
)

func TestMismatchOrdering(t *testing.T) {
	if keystore.MismatchNone >= keystore.MismatchLifetime {
		t.Fatalf("MismatchNone should be lower priority than MismatchLifetime")
	}
	if keystore.MismatchLifetime >= keystore.MismatchHash {
		t.Fatalf("MismatchLifetime should be lower priority than MismatchHash")
	}
}

func TestWorsePicksHigherPriority(t *testing.T) {
	cases := []struct {
		a, b, want keystore.Mismatch
	}{
		{keystore.MismatchNone, keystore.MismatchHash, keystore.MismatchHash},
		{keystore.MismatchLifetime, keystore.MismatchNone, keystore.MismatchLifetime},
		{keystore.MismatchHash, keystore.MismatchLifetime, keystore.MismatchHash},
		{keystore.MismatchNone, keystore.MismatchNone, keystore.MismatchNone},
	}
	for _, c := range cases {
		if got := keystore.Worse(c.a, c.b); got != c.want {
			t.Fatalf("Worse(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestEvaluateMismatch(t *testing.T) {
	cases := []struct {
		lifetime, hash bool
		want           keystore.Mismatch
	}{
		{false, false, keystore.MismatchNone},
		{true, false, keystore.MismatchLifetime},
		{false, true, keystore.MismatchHash},
		{true, true, keystore.MismatchHash},
	}
	for _, c := range cases {
		if got := keystore.EvaluateMismatch(c.lifetime, c.hash); got != c.want {
			t.Fatalf("EvaluateMismatch(%v,%v) = %v, want %v", c.lifetime, c.hash, got, c.want)
		}
	}
}
