package defs

import "testing"

func TestErrTOk(t *testing.T) {
	if !EOK.Ok() {
		t.Fatal("expected EOK.Ok() to be true")
	}
	for _, e := range []Err_t{EFAULT, ENOMEM, EINVAL, ENAMETOOLONG} {
		if e.Ok() {
			t.Errorf("expected %d.Ok() to be false", e)
		}
	}
}
