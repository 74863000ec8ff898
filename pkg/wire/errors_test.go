package wire

import "testing"

func TestErrorCodeName(t *testing.T) {
	if ErrorCodeName(ErrCodeNotFound) != "NOT_FOUND" {
		t.Fatal("unexpected name for NOT_FOUND")
	}
	if ErrorCodeName(9999) != "UNKNOWN_9999" {
		t.Fatal("unexpected name for unknown code")
	}
}

func TestInvalidMessage(t *testing.T) {
	body := InvalidMessage("empty payload")
	if body.Code != ErrCodeInvalidMessage || body.Message != "empty payload" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
