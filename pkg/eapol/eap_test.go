package eapol

import "testing"

func TestEAPRequestIdentityRoundTrip(t *testing.T) {
	msg := RequestIdentity(5)
	enc := EncodeEAP(msg)
	got, err := DecodeEAP(enc)
	if err != nil {
		t.Fatalf("DecodeEAP: %v", err)
	}
	if got.Code != EAPCodeRequest || got.ID != 5 || !got.HasType || got.Type != EAPTypeIdentity {
		t.Fatalf("got %+v", got)
	}
}

func TestEAPFailureRoundTrip(t *testing.T) {
	enc := EncodeEAP(Failure(9))
	got, err := DecodeEAP(enc)
	if err != nil {
		t.Fatalf("DecodeEAP: %v", err)
	}
	if got.Code != EAPCodeFailure || got.ID != 9 || got.HasType {
		t.Fatalf("got %+v", got)
	}
	if len(enc) != 4 {
		t.Fatalf("Failure message should be exactly 4 bytes, got %d", len(enc))
	}
}

func TestDecodeEAPRejectsShortMessage(t *testing.T) {
	if _, err := DecodeEAP([]byte{1, 2}); err != ErrMalformedEAP {
		t.Fatalf("expected ErrMalformedEAP, got %v", err)
	}
}

func TestDecodeEAPRejectsLengthMismatch(t *testing.T) {
	enc := EncodeEAP(RequestIdentity(1))
	enc[3] = 0xff // corrupt declared length
	if _, err := DecodeEAP(enc); err != ErrMalformedEAP {
		t.Fatalf("expected ErrMalformedEAP, got %v", err)
	}
}
