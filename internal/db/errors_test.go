package db

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(OpGet, "k", nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}

	cause := errors.New("connection reset")
	err := Wrap(OpHSet, "docvault:kw:a", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(%v, cause) = false", err)
	}

	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != OpHSet || dbErr.Key != "docvault:kw:a" {
		t.Errorf("errors.As = %+v", dbErr)
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Op: OpSearch, Key: "docvault:idx", Err: errors.New("timeout")}, "FT.SEARCH docvault:idx: timeout"},
		{&Error{Op: OpVerify, Err: errors.New("disk I/O")}, "ledger.verify: disk I/O"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
